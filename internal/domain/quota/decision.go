package quota

import "fmt"

// Decision is the outcome of a quota check for one consumption request
type Decision struct {
	Allowed   bool           `json:"allowed"`
	Resource  ResourceKind   `json:"resource"`
	Current   int64          `json:"current"`
	Limit     int64          `json:"limit"` // -1 = unlimited
	Mode      AllocationMode `json:"mode"`
	Source    LimitSource    `json:"source"`
	IsWarning bool           `json:"is_warning,omitempty"`

	// Degraded marks decisions produced while the counter store was
	// unreachable. The action is allowed, but the caller can tell
	// "allowed by policy" from "allowed because tracking is down".
	Degraded bool `json:"degraded,omitempty"`

	Message string `json:"message,omitempty"`
}

// Evaluate applies allocation-mode policy to a consumption request.
// Pure: callers supply the current counter value.
func Evaluate(limit EffectiveLimit, current, amount int64) Decision {
	d := Decision{
		Allowed:  true,
		Resource: limit.Resource,
		Current:  current,
		Limit:    limit.Limit,
		Mode:     limit.Mode,
		Source:   limit.Source,
	}

	// An unlimited value disables the ceiling whatever the mode says
	if limit.IsUnlimited() {
		return d
	}

	wouldBe := current + amount
	switch limit.Mode {
	case ModeSoftCap:
		if wouldBe > limit.Limit {
			d.IsWarning = true
			d.Message = fmt.Sprintf("%s usage %d exceeds soft limit %d", limit.Resource.DisplayName(), wouldBe, limit.Limit)
		}
	case ModeHardCap, ModeReserved:
		if wouldBe > limit.Limit {
			d.Allowed = false
			d.Message = fmt.Sprintf("%s limit reached (%d/%d)", limit.Resource.DisplayName(), current, limit.Limit)
		}
	}
	return d
}

// WarningLevel is the graduated severity ladder for execution tracking
type WarningLevel string

const (
	WarningNone     WarningLevel = "none"
	WarningApproach WarningLevel = "warning"  // >= 80% of limit
	WarningCritical WarningLevel = "critical" // >= 95% of limit
	WarningBlocked  WarningLevel = "blocked"  // >= 100% of limit
)

// warning ladder thresholds, as fractions of the limit
const (
	WarnThreshold     = 0.80
	CriticalThreshold = 0.95
)

// LevelForUsage returns the warning level for a usage count against a
// limit. An unlimited limit always yields WarningNone.
func LevelForUsage(count, limit int64) WarningLevel {
	if limit == Unlimited || limit <= 0 {
		return WarningNone
	}
	ratio := float64(count) / float64(limit)
	switch {
	case ratio >= 1.0:
		return WarningBlocked
	case ratio >= CriticalThreshold:
		return WarningCritical
	case ratio >= WarnThreshold:
		return WarningApproach
	default:
		return WarningNone
	}
}

// UsageSnapshot is one resource's usage position, for dashboards
type UsageSnapshot struct {
	Resource  ResourceKind   `json:"resource"`
	Current   int64          `json:"current"`
	Limit     int64          `json:"limit"` // -1 = unlimited
	Mode      AllocationMode `json:"mode"`
	Source    LimitSource    `json:"source"`
	Remaining int64          `json:"remaining"` // -1 when unlimited
	Percent   float64        `json:"percent"`   // 0 when unlimited
	Level     WarningLevel   `json:"level"`
}

// NewUsageSnapshot builds a snapshot from a resolved limit and the
// current counter value
func NewUsageSnapshot(limit EffectiveLimit, current int64) UsageSnapshot {
	s := UsageSnapshot{
		Resource:  limit.Resource,
		Current:   current,
		Limit:     limit.Limit,
		Mode:      limit.Mode,
		Source:    limit.Source,
		Remaining: Unlimited,
		Level:     WarningNone,
	}
	if limit.IsUnlimited() {
		return s
	}

	s.Remaining = limit.Limit - current
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	if limit.Limit > 0 {
		s.Percent = float64(current) / float64(limit.Limit) * 100
	}
	s.Level = LevelForUsage(current, limit.Limit)
	return s
}
