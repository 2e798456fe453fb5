package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageLedgerModel is the GORM model for durable usage ledger rows
type UsageLedgerModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerKind        string    `gorm:"not null;uniqueIndex:idx_ledger_owner_period,priority:1"`
	OwnerID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_owner_period,priority:2"`
	PeriodType       string    `gorm:"not null;uniqueIndex:idx_ledger_owner_period,priority:3"`
	PeriodStart      time.Time `gorm:"not null;uniqueIndex:idx_ledger_owner_period,priority:4;index"`
	APICalls         int64     `gorm:"not null;default:0"`
	WorkflowRuns     int64     `gorm:"not null;default:0"`
	PluginExecutions int64     `gorm:"not null;default:0"`
	StorageUsed      int64     `gorm:"not null;default:0"`
	Errors           int64     `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the table name for the model
func (UsageLedgerModel) TableName() string {
	return "usage_ledger"
}

// ToEntity converts the model to a domain entity
func (m *UsageLedgerModel) ToEntity() *quota.UsageLedgerRow {
	return &quota.UsageLedgerRow{
		ID:               m.ID,
		OwnerKind:        quota.OwnerKind(m.OwnerKind),
		OwnerID:          m.OwnerID,
		PeriodType:       quota.PeriodType(m.PeriodType),
		PeriodStart:      m.PeriodStart,
		APICalls:         m.APICalls,
		WorkflowRuns:     m.WorkflowRuns,
		PluginExecutions: m.PluginExecutions,
		StorageUsed:      m.StorageUsed,
		Errors:           m.Errors,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// UsageLedgerModelFromEntity creates a model from a domain entity
func UsageLedgerModelFromEntity(row *quota.UsageLedgerRow) *UsageLedgerModel {
	return &UsageLedgerModel{
		ID:               row.ID,
		OwnerKind:        string(row.OwnerKind),
		OwnerID:          row.OwnerID,
		PeriodType:       string(row.PeriodType),
		PeriodStart:      row.PeriodStart,
		APICalls:         row.APICalls,
		WorkflowRuns:     row.WorkflowRuns,
		PluginExecutions: row.PluginExecutions,
		StorageUsed:      row.StorageUsed,
		Errors:           row.Errors,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

// ledgerConflictColumns is the natural key of a ledger row
var ledgerConflictColumns = []clause.Column{
	{Name: "owner_kind"},
	{Name: "owner_id"},
	{Name: "period_type"},
	{Name: "period_start"},
}

// UsageLedgerRepository implements quota.LedgerRepository on GORM
type UsageLedgerRepository struct {
	db *gorm.DB
}

// NewUsageLedgerRepository creates a new usage ledger repository
func NewUsageLedgerRepository(db *gorm.DB) *UsageLedgerRepository {
	return &UsageLedgerRepository{db: db}
}

// Upsert creates or fully overwrites the row for its period key, so
// rollup jobs can re-run without double counting
func (r *UsageLedgerRepository) Upsert(ctx context.Context, row *quota.UsageLedgerRow) error {
	model := UsageLedgerModelFromEntity(row)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: ledgerConflictColumns,
		DoUpdates: clause.AssignmentColumns([]string{
			"api_calls", "workflow_runs", "plugin_executions", "storage_used", "errors", "updated_at",
		}),
	}).Create(model).Error
}

// IncrementUsage additively records a single observation, creating the
// row when absent. The storage gauge is adjusted rather than summed and
// clamped at zero.
func (r *UsageLedgerRepository) IncrementUsage(ctx context.Context, owner quota.Owner, periodType quota.PeriodType, periodStart time.Time, resource quota.ResourceKind, amount int64) error {
	column, ok := ledgerColumnFor(resource)
	if !ok {
		return nil
	}

	row, err := quota.NewUsageLedgerRow(owner, periodType, periodStart)
	if err != nil {
		return err
	}
	row.Record(resource, amount)

	var update clause.Expr
	if resource == quota.ResourceStorageBytes {
		// gauge delta with a zero floor
		update = gorm.Expr("CASE WHEN usage_ledger.storage_used + ? < 0 THEN 0 ELSE usage_ledger.storage_used + ? END", amount, amount)
	} else {
		update = gorm.Expr("usage_ledger."+column+" + ?", amount)
	}

	model := UsageLedgerModelFromEntity(row)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: ledgerConflictColumns,
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       update,
			"updated_at": time.Now(),
		}),
	}).Create(model).Error
}

// Find returns the row for an owner and window, or nil when absent
func (r *UsageLedgerRepository) Find(ctx context.Context, owner quota.Owner, periodType quota.PeriodType, periodStart time.Time) (*quota.UsageLedgerRow, error) {
	var model UsageLedgerModel
	err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND period_type = ? AND period_start = ?",
			string(owner.Kind), owner.ID, string(periodType), periodStart).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// ListByPeriod returns all rows of a period type whose period start
// falls in [from, to)
func (r *UsageLedgerRepository) ListByPeriod(ctx context.Context, periodType quota.PeriodType, from, to time.Time) ([]*quota.UsageLedgerRow, error) {
	var models []UsageLedgerModel
	err := r.db.WithContext(ctx).
		Where("period_type = ? AND period_start >= ? AND period_start < ?", string(periodType), from, to).
		Order("period_start ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return ledgerRowsFromModels(models), nil
}

// ListByOwner returns an owner's rows of a period type whose period
// start falls in [from, to), most recent first
func (r *UsageLedgerRepository) ListByOwner(ctx context.Context, owner quota.Owner, periodType quota.PeriodType, from, to time.Time) ([]*quota.UsageLedgerRow, error) {
	var models []UsageLedgerModel
	err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND period_type = ? AND period_start >= ? AND period_start < ?",
			string(owner.Kind), owner.ID, string(periodType), from, to).
		Order("period_start DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return ledgerRowsFromModels(models), nil
}

func ledgerRowsFromModels(models []UsageLedgerModel) []*quota.UsageLedgerRow {
	rows := make([]*quota.UsageLedgerRow, len(models))
	for i := range models {
		rows[i] = models[i].ToEntity()
	}
	return rows
}

// ledgerColumnFor maps a resource kind to its ledger column; kinds the
// ledger does not persist map to false
func ledgerColumnFor(resource quota.ResourceKind) (string, bool) {
	switch resource {
	case quota.ResourceAPICalls:
		return "api_calls", true
	case quota.ResourceExecutions:
		return "workflow_runs", true
	case quota.ResourcePlugins:
		return "plugin_executions", true
	case quota.ResourceStorageBytes:
		return "storage_used", true
	case quota.ResourceErrors:
		return "errors", true
	default:
		return "", false
	}
}

// Ensure UsageLedgerRepository implements the interface
var _ quota.LedgerRepository = (*UsageLedgerRepository)(nil)
