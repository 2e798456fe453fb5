package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// PlanLimitsModel is the GORM model for plan limit configuration.
// Every column defaults to -1 (unlimited) so a sparse plan definition
// never accidentally blocks anything.
type PlanLimitsModel struct {
	PlanID          string `gorm:"primaryKey"`
	MaxWorkflows    int64  `gorm:"not null;default:-1"`
	MaxPlugins      int64  `gorm:"not null;default:-1"`
	MaxAPICalls     int64  `gorm:"not null;default:-1"`
	MaxStorageBytes int64  `gorm:"not null;default:-1"`
	MaxSteps        int64  `gorm:"not null;default:-1"`
	MaxGateways     int64  `gorm:"not null;default:-1"`
	MaxDepartments  int64  `gorm:"not null;default:-1"`
	MaxMembers      int64  `gorm:"not null;default:-1"`
	MaxExecutions   int64  `gorm:"not null;default:-1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the table name for the model
func (PlanLimitsModel) TableName() string {
	return "plan_limits"
}

// ToEntity converts the model to domain plan limits
func (m *PlanLimitsModel) ToEntity() *quota.PlanLimits {
	return &quota.PlanLimits{
		PlanID: m.PlanID,
		Limits: quota.LimitSet{
			MaxWorkflows:    m.MaxWorkflows,
			MaxPlugins:      m.MaxPlugins,
			MaxAPICalls:     m.MaxAPICalls,
			MaxStorageBytes: m.MaxStorageBytes,
			MaxSteps:        m.MaxSteps,
			MaxGateways:     m.MaxGateways,
			MaxDepartments:  m.MaxDepartments,
			MaxMembers:      m.MaxMembers,
			MaxExecutions:   m.MaxExecutions,
		},
	}
}

// PlanLimitsModelFromEntity creates a model from domain plan limits
func PlanLimitsModelFromEntity(p *quota.PlanLimits) *PlanLimitsModel {
	return &PlanLimitsModel{
		PlanID:          p.PlanID,
		MaxWorkflows:    p.Limits.MaxWorkflows,
		MaxPlugins:      p.Limits.MaxPlugins,
		MaxAPICalls:     p.Limits.MaxAPICalls,
		MaxStorageBytes: p.Limits.MaxStorageBytes,
		MaxSteps:        p.Limits.MaxSteps,
		MaxGateways:     p.Limits.MaxGateways,
		MaxDepartments:  p.Limits.MaxDepartments,
		MaxMembers:      p.Limits.MaxMembers,
		MaxExecutions:   p.Limits.MaxExecutions,
	}
}

// PlanRepository implements quota.PlanRepository on GORM
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan limits repository
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// FindByPlanID retrieves a plan's limits by plan identifier
func (r *PlanRepository) FindByPlanID(ctx context.Context, planID string) (*quota.PlanLimits, error) {
	var model PlanLimitsModel
	if err := r.db.WithContext(ctx).First(&model, "plan_id = ?", planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Save creates or updates a plan's limits
func (r *PlanRepository) Save(ctx context.Context, plan *quota.PlanLimits) error {
	model := PlanLimitsModelFromEntity(plan)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure PlanRepository implements the interface
var _ quota.PlanRepository = (*PlanRepository)(nil)
