package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TrackResult is the outcome of recording one execution against the
// monthly allowance. Blocked and Degraded are distinct on purpose:
// callers can tell "denied by policy" from "tracking subsystem down".
type TrackResult struct {
	Success  bool               `json:"success"`
	NewCount int64              `json:"new_count"`
	Limit    int64              `json:"limit"` // -1 = unlimited
	Level    quota.WarningLevel `json:"level"`

	// Degraded means the counter store was unreachable; the execution
	// proceeds untracked because usage tracking must never be the
	// reason a legitimate action is rejected.
	Degraded bool `json:"degraded,omitempty"`

	Message string `json:"message,omitempty"`
}

// ExecutionTracker records workflow/API executions against the monthly
// execution allowance and grades usage on the warning ladder
// none < warning (>=80%) < critical (>=95%) < blocked (>=100%).
//
// Workspace-mode accounts are unmetered: executions still count for
// analytics, but the tracker never blocks them and never reports the
// blocked level for them.
type ExecutionTracker struct {
	resolver *Resolver
	gate     *Gate
	counters quota.CounterStore
	logger   *zap.Logger

	now func() time.Time
}

// NewExecutionTracker creates an execution tracker sharing the gate's
// counter and ledger plumbing
func NewExecutionTracker(resolver *Resolver, gate *Gate, counters quota.CounterStore, logger *zap.Logger) *ExecutionTracker {
	return &ExecutionTracker{
		resolver: resolver,
		gate:     gate,
		counters: counters,
		logger:   logger,
		now:      time.Now,
	}
}

// Track records one execution for the owner and returns the warning
// ladder position. Metered accounts at or past their limit are blocked
// before the counter is incremented.
func (t *ExecutionTracker) Track(ctx context.Context, owner quota.OwnerContext) (TrackResult, error) {
	if owner.UserID == uuid.Nil {
		return TrackResult{}, shared.NewDomainError("INVALID_OWNER", "User ID cannot be empty")
	}

	limit, err := t.resolver.Resolve(ctx, owner, quota.ResourceExecutions)
	if err != nil {
		// resolution only errors on invalid input; treat anything
		// else as tracking degradation and let the execution through
		t.logger.Warn("Execution limit resolution failed, failing open", zap.Error(err))
		return t.failOpen(), nil
	}

	bucket := owner.CounterOwner(limit.Source)
	key := quota.NewCounterKey(bucket, quota.ResourceExecutions, quota.PeriodMonthly, t.now())

	current, _, err := t.counters.Get(ctx, key)
	if err != nil {
		t.logger.Warn("Execution counter read failed, failing open",
			zap.String("key", key.String()), zap.Error(err))
		return t.failOpen(), nil
	}

	// Metered accounts are blocked before the increment happens
	if !owner.WorkspaceMode && !limit.IsUnlimited() && current >= limit.Limit {
		return TrackResult{
			Success:  false,
			NewCount: current,
			Limit:    limit.Limit,
			Level:    quota.WarningBlocked,
			Message:  fmt.Sprintf("Monthly execution limit reached (%d/%d)", current, limit.Limit),
		}, nil
	}

	newCount := t.gate.count(ctx, bucket, quota.ResourceExecutions, 1)
	if newCount < 0 {
		return t.failOpen(), nil
	}

	result := TrackResult{
		Success:  true,
		NewCount: newCount,
		Limit:    limit.Limit,
		Level:    quota.LevelForUsage(newCount, limit.Limit),
	}

	// Workspace accounts are tracked for analytics but never surface
	// as blocked
	if owner.WorkspaceMode && result.Level == quota.WarningBlocked {
		result.Level = quota.WarningCritical
	}

	switch result.Level {
	case quota.WarningApproach:
		result.Message = fmt.Sprintf("Executions at %d of %d this month", newCount, limit.Limit)
	case quota.WarningCritical:
		result.Message = fmt.Sprintf("Executions nearly exhausted: %d of %d this month", newCount, limit.Limit)
	case quota.WarningBlocked:
		result.Message = fmt.Sprintf("Monthly execution limit reached (%d/%d)", newCount, limit.Limit)
	}
	return result, nil
}

func (t *ExecutionTracker) failOpen() TrackResult {
	return TrackResult{
		Success:  true,
		NewCount: 0,
		Limit:    quota.Unlimited,
		Level:    quota.WarningNone,
		Degraded: true,
	}
}
