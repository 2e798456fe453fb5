package quota

import (
	"fmt"
	"time"
)

// PeriodType identifies the grain of a billing window
type PeriodType string

const (
	PeriodHourly  PeriodType = "HOURLY"
	PeriodDaily   PeriodType = "DAILY"
	PeriodWeekly  PeriodType = "WEEKLY"
	PeriodMonthly PeriodType = "MONTHLY"
)

// String returns the string representation of PeriodType
func (p PeriodType) String() string {
	return string(p)
}

// IsValid returns true if the period type is known
func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// PeriodStart returns the inclusive start of the window containing now.
// Weekly windows start on Monday.
func PeriodStart(p PeriodType, now time.Time) time.Time {
	switch p {
	case PeriodHourly:
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	case PeriodDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday
		}
		// AddDate normalizes day-of-month underflow across month boundaries
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return day.AddDate(0, 0, -(weekday - 1))
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
}

// PeriodEnd returns the exclusive end of the window containing now
func PeriodEnd(p PeriodType, now time.Time) time.Time {
	return NextPeriodStart(p, now)
}

// NextPeriodStart returns the start of the window following the one
// containing now
func NextPeriodStart(p PeriodType, now time.Time) time.Time {
	start := PeriodStart(p, now)
	switch p {
	case PeriodHourly:
		return start.Add(time.Hour)
	case PeriodDaily:
		return start.AddDate(0, 0, 1)
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// PeriodKey encodes the calendar window containing now as a string.
// Counter keys embed it so that rollover needs no reset: a new window
// simply produces a new key.
func PeriodKey(p PeriodType, now time.Time) string {
	switch p {
	case PeriodHourly:
		return now.Format("2006-01-02T15")
	case PeriodDaily:
		return now.Format("2006-01-02")
	case PeriodWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return now.Format("2006-01")
	}
}
