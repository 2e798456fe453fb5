package quota

import (
	"context"

	"github.com/google/uuid"
)

// PlanLimits is the limit configuration a subscription plan defines.
// Plans define every resource, so resolution against a plan always
// yields a value.
type PlanLimits struct {
	PlanID string
	Limits LimitSet
}

// PlanRepository looks up plan limit configuration. Plan assignment
// itself (which plan an account is on) is an external collaborator
// concern; this core only reads limits by plan identifier.
type PlanRepository interface {
	// FindByPlanID returns the plan's limits, or shared.ErrNotFound
	FindByPlanID(ctx context.Context, planID string) (*PlanLimits, error)
}

// AllocationRepository persists allocation override records
type AllocationRepository interface {
	// Save creates or updates an allocation
	Save(ctx context.Context, allocation *Allocation) error

	// FindMemberAllocation returns the member-scoped allocation for
	// (userID, departmentID), or nil when none exists
	FindMemberAllocation(ctx context.Context, userID, departmentID uuid.UUID) (*Allocation, error)

	// FindDepartmentAllocation returns the department-scoped
	// allocation for departmentID, or nil when none exists
	FindDepartmentAllocation(ctx context.Context, departmentID uuid.UUID) (*Allocation, error)

	// ListByOrganization returns every allocation under an organization
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*Allocation, error)

	// Delete removes an allocation by ID
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteForMember removes the member allocation for
	// (userID, departmentID); called when the member is removed
	DeleteForMember(ctx context.Context, userID, departmentID uuid.UUID) error

	// DeleteForDepartment removes the department allocation and every
	// member allocation under it; called when the department is removed
	DeleteForDepartment(ctx context.Context, departmentID uuid.UUID) error
}
