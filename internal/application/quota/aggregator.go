package quota

import (
	"context"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"go.uber.org/zap"
)

// Aggregator rolls real-time counters into durable ledger rows. Both
// jobs are idempotent: they upsert on the row's period key and
// overwrite rather than add, so re-running a window can never double
// count.
type Aggregator struct {
	counters quota.CounterStore
	ledger   quota.LedgerRepository
	logger   *zap.Logger

	now func() time.Time
}

// NewAggregator creates a usage aggregator
func NewAggregator(counters quota.CounterStore, ledger quota.LedgerRepository, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		counters: counters,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
}

// AggregateHourly rolls the just-completed hour's raw counters into
// HOURLY ledger rows, one per owner with activity. Returns the number
// of rows written.
func (a *Aggregator) AggregateHourly(ctx context.Context) (int, error) {
	hourStart := quota.PeriodStart(quota.PeriodHourly, a.now().Add(-time.Hour))
	return a.aggregateHour(ctx, hourStart)
}

// aggregateHour rolls one hour window's counters into ledger rows
func (a *Aggregator) aggregateHour(ctx context.Context, hourStart time.Time) (int, error) {
	periodKey := quota.PeriodKey(quota.PeriodHourly, hourStart)

	entries, err := a.counters.ScanPeriod(ctx, periodKey)
	if err != nil {
		a.logger.Error("Hourly counter scan failed",
			zap.String("period_key", periodKey), zap.Error(err))
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	rows := make(map[quota.Owner]*quota.UsageLedgerRow)
	for _, entry := range entries {
		row, ok := rows[entry.Owner]
		if !ok {
			row, err = quota.NewUsageLedgerRow(entry.Owner, quota.PeriodHourly, hourStart)
			if err != nil {
				a.logger.Warn("Skipping malformed counter entry",
					zap.String("owner_id", entry.Owner.ID.String()), zap.Error(err))
				continue
			}
			rows[entry.Owner] = row
		}
		row.Record(entry.Resource, entry.Value)
	}

	written := 0
	for _, row := range rows {
		if err := a.ledger.Upsert(ctx, row); err != nil {
			a.logger.Error("Hourly ledger upsert failed",
				zap.String("owner_id", row.OwnerID.String()),
				zap.Time("period_start", row.PeriodStart),
				zap.Error(err))
			continue
		}
		written++
	}

	a.logger.Info("Hourly usage rollup completed",
		zap.String("period_key", periodKey),
		zap.Int("rows", written))
	return written, nil
}

// AggregateDaily groups today's HOURLY ledger rows per owner and
// upserts a DAILY row: additive fields sum, the storage gauge takes
// the maximum observed value. Safe to re-run mid-day; the result then
// reflects completed hours only. The in-progress hour is excluded:
// its row exists already because enforcement nudges the ledger in
// real time, but it is still accumulating.
func (a *Aggregator) AggregateDaily(ctx context.Context) (int, error) {
	now := a.now()
	dayStart := quota.PeriodStart(quota.PeriodDaily, now)
	cutoff := quota.PeriodStart(quota.PeriodHourly, now)

	hourly, err := a.ledger.ListByPeriod(ctx, quota.PeriodHourly, dayStart, cutoff)
	if err != nil {
		a.logger.Error("Hourly ledger listing failed",
			zap.Time("day_start", dayStart), zap.Error(err))
		return 0, err
	}
	if len(hourly) == 0 {
		return 0, nil
	}

	daily := make(map[quota.Owner]*quota.UsageLedgerRow)
	for _, hourRow := range hourly {
		owner := hourRow.Owner()
		row, ok := daily[owner]
		if !ok {
			row, err = quota.NewUsageLedgerRow(owner, quota.PeriodDaily, dayStart)
			if err != nil {
				continue
			}
			daily[owner] = row
		}
		row.Merge(hourRow)
	}

	written := 0
	for _, row := range daily {
		if err := a.ledger.Upsert(ctx, row); err != nil {
			a.logger.Error("Daily ledger upsert failed",
				zap.String("owner_id", row.OwnerID.String()),
				zap.Error(err))
			continue
		}
		written++
	}

	a.logger.Info("Daily usage rollup completed",
		zap.Time("day_start", dayStart),
		zap.Int("rows", written))
	return written, nil
}
