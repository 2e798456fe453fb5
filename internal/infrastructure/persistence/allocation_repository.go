package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationModel is the GORM model for allocation override records
type AllocationModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Scope           string     `gorm:"not null;index:idx_alloc_scope_target,priority:1"`
	OrganizationID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	DepartmentID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_alloc_scope_target,priority:2"`
	UserID          *uuid.UUID `gorm:"type:uuid;index:idx_alloc_scope_target,priority:3"`
	MaxWorkflows    *int64
	MaxPlugins      *int64
	MaxAPICalls     *int64
	MaxStorageBytes *int64
	MaxSteps        *int64
	Mode            string    `gorm:"not null;default:'HARD_CAP'"`
	CreatedBy       uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the table name for the model
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToEntity converts the model to a domain entity
func (m *AllocationModel) ToEntity() *quota.Allocation {
	return &quota.Allocation{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Scope:          quota.AllocationScope(m.Scope),
		OrganizationID: m.OrganizationID,
		DepartmentID:   m.DepartmentID,
		UserID:         m.UserID,
		Limits: quota.LimitOverride{
			MaxWorkflows:    m.MaxWorkflows,
			MaxPlugins:      m.MaxPlugins,
			MaxAPICalls:     m.MaxAPICalls,
			MaxStorageBytes: m.MaxStorageBytes,
			MaxSteps:        m.MaxSteps,
		},
		Mode:      quota.AllocationMode(m.Mode),
		CreatedBy: m.CreatedBy,
	}
}

// AllocationModelFromEntity creates a model from a domain entity
func AllocationModelFromEntity(a *quota.Allocation) *AllocationModel {
	return &AllocationModel{
		ID:              a.ID,
		Scope:           string(a.Scope),
		OrganizationID:  a.OrganizationID,
		DepartmentID:    a.DepartmentID,
		UserID:          a.UserID,
		MaxWorkflows:    a.Limits.MaxWorkflows,
		MaxPlugins:      a.Limits.MaxPlugins,
		MaxAPICalls:     a.Limits.MaxAPICalls,
		MaxStorageBytes: a.Limits.MaxStorageBytes,
		MaxSteps:        a.Limits.MaxSteps,
		Mode:            string(a.Mode),
		CreatedBy:       a.CreatedBy,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// AllocationRepository implements quota.AllocationRepository on GORM
type AllocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// Save creates or updates an allocation
func (r *AllocationRepository) Save(ctx context.Context, allocation *quota.Allocation) error {
	model := AllocationModelFromEntity(allocation)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindMemberAllocation returns the member-scoped allocation for
// (userID, departmentID), or nil when none exists
func (r *AllocationRepository) FindMemberAllocation(ctx context.Context, userID, departmentID uuid.UUID) (*quota.Allocation, error) {
	var model AllocationModel
	err := r.db.WithContext(ctx).
		Where("scope = ? AND department_id = ? AND user_id = ?", string(quota.ScopeMember), departmentID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindDepartmentAllocation returns the department-scoped allocation,
// or nil when none exists
func (r *AllocationRepository) FindDepartmentAllocation(ctx context.Context, departmentID uuid.UUID) (*quota.Allocation, error) {
	var model AllocationModel
	err := r.db.WithContext(ctx).
		Where("scope = ? AND department_id = ?", string(quota.ScopeDepartment), departmentID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// ListByOrganization returns every allocation under an organization
func (r *AllocationRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*quota.Allocation, error) {
	var models []AllocationModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	allocations := make([]*quota.Allocation, len(models))
	for i := range models {
		allocations[i] = models[i].ToEntity()
	}
	return allocations, nil
}

// Delete removes an allocation by ID
func (r *AllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&AllocationModel{}, "id = ?", id).Error
}

// DeleteForMember removes the member allocation for
// (userID, departmentID)
func (r *AllocationRepository) DeleteForMember(ctx context.Context, userID, departmentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("scope = ? AND department_id = ? AND user_id = ?", string(quota.ScopeMember), departmentID, userID).
		Delete(&AllocationModel{}).Error
}

// DeleteForDepartment removes the department allocation and every
// member allocation under the department
func (r *AllocationRepository) DeleteForDepartment(ctx context.Context, departmentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("department_id = ?", departmentID).
		Delete(&AllocationModel{}).Error
}

// Ensure AllocationRepository implements the interface
var _ quota.AllocationRepository = (*AllocationRepository)(nil)
