package quota

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"go.uber.org/zap"
)

// QuotaExceededError is raised when Enforce denies a consumption
// request. It is the only error this core raises deliberately.
type QuotaExceededError struct {
	Resource quota.ResourceKind
	Current  int64
	Limit    int64
	Message  string
}

// Error implements the error interface
func (e *QuotaExceededError) Error() string {
	return e.Message
}

// HTTPStatusCode returns the HTTP status code for this error (429 Too Many Requests)
func (e *QuotaExceededError) HTTPStatusCode() int {
	return http.StatusTooManyRequests
}

// NewQuotaExceededError creates a new QuotaExceededError
func NewQuotaExceededError(resource quota.ResourceKind, current, limit int64) *QuotaExceededError {
	return &QuotaExceededError{
		Resource: resource,
		Current:  current,
		Limit:    limit,
		Message: fmt.Sprintf(
			"Quota exceeded for %s: current usage %d at limit %d",
			resource.DisplayName(), current, limit,
		),
	}
}

// GateConfig contains configuration for the enforcement gate
type GateConfig struct {
	// EnforcePeriod is the billing window limits are evaluated over
	EnforcePeriod quota.PeriodType

	// ExpiryGrace is added to a counter key's period end when setting
	// its TTL, so late rollups still find the data
	ExpiryGrace time.Duration
}

// DefaultGateConfig returns default gate configuration
func DefaultGateConfig() GateConfig {
	return GateConfig{
		EnforcePeriod: quota.PeriodMonthly,
		ExpiryGrace:   48 * time.Hour,
	}
}

// Gate is the public quota decision point. Check evaluates policy
// without mutating anything; Enforce evaluates, then counts.
//
// The real-time counter store is authoritative for decisions. The
// durable ledger trails it via fire-and-forget writes; a lost ledger
// write is logged and repaired by the next hourly rollup.
type Gate struct {
	resolver *Resolver
	counters quota.CounterStore
	ledger   quota.LedgerRepository
	logger   *zap.Logger
	config   GateConfig

	now func() time.Time
}

// NewGate creates a quota enforcement gate
func NewGate(resolver *Resolver, counters quota.CounterStore, ledger quota.LedgerRepository, logger *zap.Logger, config GateConfig) *Gate {
	if !config.EnforcePeriod.IsValid() {
		config.EnforcePeriod = quota.PeriodMonthly
	}
	if config.ExpiryGrace <= 0 {
		config.ExpiryGrace = 48 * time.Hour
	}
	return &Gate{
		resolver: resolver,
		counters: counters,
		ledger:   ledger,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

// Check evaluates whether the owner may consume amount units of a
// resource. It never mutates counter state.
func (g *Gate) Check(ctx context.Context, owner quota.OwnerContext, resource quota.ResourceKind, amount int64) (quota.Decision, error) {
	if amount <= 0 {
		amount = 1
	}
	limit, err := g.resolver.Resolve(ctx, owner, resource)
	if err != nil {
		return quota.Decision{}, err
	}

	current, degraded := g.currentUsage(ctx, owner, limit)
	decision := quota.Evaluate(limit, current, amount)
	if degraded {
		// Counter store unreachable: usage counting fails open, and
		// hard-cap rejection is best-effort, so allow and say so.
		decision.Allowed = true
		decision.Degraded = true
		decision.IsWarning = false
	}
	return decision, nil
}

// Enforce evaluates like Check and, when allowed, increments the
// real-time counter and asynchronously nudges the durable ledger.
// Returns a QuotaExceededError when the decision denies.
func (g *Gate) Enforce(ctx context.Context, owner quota.OwnerContext, resource quota.ResourceKind, amount int64) (quota.Decision, error) {
	if amount <= 0 {
		amount = 1
	}
	decision, err := g.Check(ctx, owner, resource, amount)
	if err != nil {
		return decision, err
	}
	if !decision.Allowed {
		g.logger.Info("Quota exceeded, blocking consumption",
			zap.String("user_id", owner.UserID.String()),
			zap.String("resource", resource.String()),
			zap.Int64("current", decision.Current),
			zap.Int64("limit", decision.Limit))
		return decision, NewQuotaExceededError(resource, decision.Current, decision.Limit)
	}

	bucket := owner.CounterOwner(decision.Source)
	newValue := g.count(ctx, bucket, resource, amount)
	if newValue >= 0 {
		decision.Current = newValue
	}
	return decision, nil
}

// AdjustStorage applies a storage delta (positive or negative) for an
// owner. Storage is a gauge: the recorded value is clamped at zero and
// never summed across periods. Deltas are never denied; storage limits
// are enforced on Check/Enforce of new writes.
func (g *Gate) AdjustStorage(ctx context.Context, owner quota.OwnerContext, deltaBytes int64) (int64, error) {
	limit, err := g.resolver.Resolve(ctx, owner, quota.ResourceStorageBytes)
	if err != nil {
		return 0, err
	}
	bucket := owner.CounterOwner(limit.Source)
	now := g.now()

	key := quota.NewCounterKey(bucket, quota.ResourceStorageBytes, g.config.EnforcePeriod, now)
	newValue, err := g.counters.AdjustGauge(ctx, key, deltaBytes)
	if err != nil {
		g.logger.Warn("Storage gauge adjustment failed",
			zap.String("key", key.String()), zap.Error(err))
		return 0, nil
	}
	// gauges refresh their expiry on every write; the target instant
	// is the same within a period, so this stays idempotent
	g.setExpiry(ctx, key, g.config.EnforcePeriod, now)

	hourKey := quota.NewCounterKey(bucket, quota.ResourceStorageBytes, quota.PeriodHourly, now)
	if _, err := g.counters.AdjustGauge(ctx, hourKey, deltaBytes); err != nil {
		g.logger.Warn("Hourly storage gauge adjustment failed",
			zap.String("key", hourKey.String()), zap.Error(err))
	} else {
		g.setExpiry(ctx, hourKey, quota.PeriodHourly, now)
	}

	g.nudgeLedger(bucket, quota.ResourceStorageBytes, deltaBytes, now)
	return newValue, nil
}

// RecordError counts a failed execution for reporting. Errors carry no
// limit; this only feeds counters and the ledger.
func (g *Gate) RecordError(ctx context.Context, owner quota.OwnerContext) {
	bucket := quota.Owner{Kind: quota.OwnerUser, ID: owner.UserID}
	if owner.InOrganization() {
		bucket = quota.Owner{Kind: quota.OwnerOrganization, ID: *owner.OrganizationID}
	}
	g.count(ctx, bucket, quota.ResourceErrors, 1)
}

// ResolveLimits returns the owner's merged limit set for display
func (g *Gate) ResolveLimits(ctx context.Context, owner quota.OwnerContext) (quota.LimitSet, error) {
	return g.resolver.ResolveLimitSet(ctx, owner)
}

// GetUsageSummary returns the owner's usage position for every
// limitable resource in the current billing window
func (g *Gate) GetUsageSummary(ctx context.Context, owner quota.OwnerContext) (map[quota.ResourceKind]quota.UsageSnapshot, error) {
	limits, err := g.resolver.ResolveAll(ctx, owner)
	if err != nil {
		return nil, err
	}

	summary := make(map[quota.ResourceKind]quota.UsageSnapshot, len(limits))
	for kind, limit := range limits {
		current, _ := g.currentUsage(ctx, owner, limit)
		summary[kind] = quota.NewUsageSnapshot(limit, current)
	}
	return summary, nil
}

// currentUsage reads the owner's counter for the enforcement window.
// Returns degraded=true when the store could not be read; callers
// treat that as zero usage.
func (g *Gate) currentUsage(ctx context.Context, owner quota.OwnerContext, limit quota.EffectiveLimit) (int64, bool) {
	bucket := owner.CounterOwner(limit.Source)
	key := quota.NewCounterKey(bucket, limit.Resource, g.config.EnforcePeriod, g.now())
	current, _, err := g.counters.Get(ctx, key)
	if err != nil {
		g.logger.Warn("Counter store read failed, assuming zero usage",
			zap.String("key", key.String()), zap.Error(err))
		return 0, true
	}
	return current, false
}

// count increments the billing-window counter plus the hourly counter
// the rollup reads, and nudges the ledger. Failures are logged and
// swallowed; returns -1 when the primary increment did not happen.
func (g *Gate) count(ctx context.Context, bucket quota.Owner, resource quota.ResourceKind, amount int64) int64 {
	now := g.now()

	key := quota.NewCounterKey(bucket, resource, g.config.EnforcePeriod, now)
	newValue, err := g.counters.Increment(ctx, key, amount)
	if err != nil {
		g.logger.Warn("Counter increment failed",
			zap.String("key", key.String()), zap.Error(err))
		newValue = -1
	} else if newValue == amount {
		// first increment in this period created the key
		g.setExpiry(ctx, key, g.config.EnforcePeriod, now)
	}

	hourKey := quota.NewCounterKey(bucket, resource, quota.PeriodHourly, now)
	if hourValue, err := g.counters.Increment(ctx, hourKey, amount); err != nil {
		g.logger.Warn("Hourly counter increment failed",
			zap.String("key", hourKey.String()), zap.Error(err))
	} else if hourValue == amount {
		g.setExpiry(ctx, hourKey, quota.PeriodHourly, now)
	}

	g.nudgeLedger(bucket, resource, amount, now)
	return newValue
}

// setExpiry aligns the key's TTL to its period end plus the grace
// buffer. Called after a key's first increment in a period; two
// concurrent first writers may both call it, but both compute the same
// instant, so the race is harmless.
func (g *Gate) setExpiry(ctx context.Context, key quota.CounterKey, period quota.PeriodType, now time.Time) {
	at := quota.PeriodEnd(period, now).Add(g.config.ExpiryGrace)
	if err := g.counters.ExpireAt(ctx, key, at); err != nil {
		g.logger.Warn("Counter expiry set failed",
			zap.String("key", key.String()), zap.Error(err))
	}
}

// nudgeLedger asynchronously records the observation on the hourly
// ledger row. Best-effort: a failure is logged and dropped, the
// counter store stays authoritative for the period.
func (g *Gate) nudgeLedger(bucket quota.Owner, resource quota.ResourceKind, amount int64, now time.Time) {
	hourStart := quota.PeriodStart(quota.PeriodHourly, now)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.ledger.IncrementUsage(ctx, bucket, quota.PeriodHourly, hourStart, resource, amount); err != nil {
			g.logger.Warn("Ledger nudge failed",
				zap.String("owner_id", bucket.ID.String()),
				zap.String("resource", resource.String()),
				zap.Error(err))
		}
	}()
}
