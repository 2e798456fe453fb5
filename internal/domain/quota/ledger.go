package quota

import (
	"context"
	"time"

	"github.com/autoflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UsageLedgerRow is a durable, period-keyed usage row. Rows are
// created on first write in a period and updated additively
// thereafter, except StorageUsed which is a gauge holding the last
// known value. The core never deletes rows; retention is an external
// concern.
type UsageLedgerRow struct {
	ID               uuid.UUID
	OwnerKind        OwnerKind
	OwnerID          uuid.UUID
	PeriodType       PeriodType
	PeriodStart      time.Time
	APICalls         int64
	WorkflowRuns     int64
	PluginExecutions int64
	StorageUsed      int64 // gauge, never negative
	Errors           int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewUsageLedgerRow creates an empty ledger row for an owner and window
func NewUsageLedgerRow(owner Owner, periodType PeriodType, periodStart time.Time) (*UsageLedgerRow, error) {
	if owner.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if !periodType.IsValid() {
		return nil, shared.NewDomainError("INVALID_PERIOD_TYPE", "Invalid period type")
	}

	now := time.Now()
	return &UsageLedgerRow{
		ID:          uuid.New(),
		OwnerKind:   owner.Kind,
		OwnerID:     owner.ID,
		PeriodType:  periodType,
		PeriodStart: periodStart,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Owner returns the row's usage bucket
func (r *UsageLedgerRow) Owner() Owner {
	return Owner{Kind: r.OwnerKind, ID: r.OwnerID}
}

// Record applies a single observation of resource consumption to the
// row. Additive kinds accumulate; the storage gauge takes the
// last-known value, clamped at zero.
func (r *UsageLedgerRow) Record(resource ResourceKind, amount int64) {
	switch resource {
	case ResourceAPICalls:
		r.APICalls += amount
	case ResourceExecutions:
		r.WorkflowRuns += amount
	case ResourcePlugins:
		r.PluginExecutions += amount
	case ResourceStorageBytes:
		r.SetStorageUsed(amount)
	case ResourceErrors:
		r.Errors += amount
	}
	r.UpdatedAt = time.Now()
}

// SetStorageUsed sets the storage gauge, clamping at zero
func (r *UsageLedgerRow) SetStorageUsed(bytes int64) {
	if bytes < 0 {
		bytes = 0
	}
	r.StorageUsed = bytes
	r.UpdatedAt = time.Now()
}

// AdjustStorageUsed applies a storage delta, clamping at zero
func (r *UsageLedgerRow) AdjustStorageUsed(delta int64) {
	r.SetStorageUsed(r.StorageUsed + delta)
}

// Merge folds another row of the same owner into this one: additive
// fields sum, the storage gauge keeps the maximum observed value.
// Used by the daily rollup over hourly rows.
func (r *UsageLedgerRow) Merge(other *UsageLedgerRow) {
	r.APICalls += other.APICalls
	r.WorkflowRuns += other.WorkflowRuns
	r.PluginExecutions += other.PluginExecutions
	r.Errors += other.Errors
	if other.StorageUsed > r.StorageUsed {
		r.StorageUsed = other.StorageUsed
	}
	r.UpdatedAt = time.Now()
}

// LedgerRepository persists usage ledger rows. Upsert semantics are
// keyed on (ownerKind, ownerID, periodType, periodStart) so rollup
// jobs are idempotent.
type LedgerRepository interface {
	// Upsert creates or fully overwrites the row for its period key
	Upsert(ctx context.Context, row *UsageLedgerRow) error

	// IncrementUsage additively records one observation on the row
	// for (owner, periodType, periodStart), creating it if absent.
	// The storage gauge is adjusted, not summed, and clamped at zero.
	IncrementUsage(ctx context.Context, owner Owner, periodType PeriodType, periodStart time.Time, resource ResourceKind, amount int64) error

	// Find returns the row for an owner and window, or nil when absent
	Find(ctx context.Context, owner Owner, periodType PeriodType, periodStart time.Time) (*UsageLedgerRow, error)

	// ListByPeriod returns all rows of a period type whose period
	// start falls in [from, to)
	ListByPeriod(ctx context.Context, periodType PeriodType, from, to time.Time) ([]*UsageLedgerRow, error)

	// ListByOwner returns an owner's rows of a period type whose
	// period start falls in [from, to), most recent first
	ListByOwner(ctx context.Context, owner Owner, periodType PeriodType, from, to time.Time) ([]*UsageLedgerRow, error)
}
