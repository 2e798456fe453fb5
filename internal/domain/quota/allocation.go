package quota

import (
	"time"

	"github.com/autoflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AllocationScope identifies what an allocation override applies to
type AllocationScope string

const (
	// ScopeMember scopes an allocation to one member of a department
	ScopeMember AllocationScope = "MEMBER"

	// ScopeDepartment scopes an allocation to a whole department
	ScopeDepartment AllocationScope = "DEPARTMENT"
)

// IsValid returns true if the allocation scope is known
func (s AllocationScope) IsValid() bool {
	return s == ScopeMember || s == ScopeDepartment
}

// Allocation is an override limit record scoped to exactly one member
// or one department. Member allocations are created by department
// managers, department allocations by organization admins; both are
// removed when the owning member/department is removed.
type Allocation struct {
	shared.BaseEntity
	Scope          AllocationScope
	OrganizationID uuid.UUID
	DepartmentID   uuid.UUID
	UserID         *uuid.UUID // set only for ScopeMember
	Limits         LimitOverride
	Mode           AllocationMode
	CreatedBy      uuid.UUID
}

// NewMemberAllocation creates an allocation override for one member of
// a department
func NewMemberAllocation(orgID, departmentID, userID, createdBy uuid.UUID, limits LimitOverride, mode AllocationMode) (*Allocation, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ALLOCATION", "Member allocation requires a user ID")
	}
	a, err := newAllocation(ScopeMember, orgID, departmentID, createdBy, limits, mode)
	if err != nil {
		return nil, err
	}
	a.UserID = &userID
	return a, nil
}

// NewDepartmentAllocation creates an allocation override for a whole
// department
func NewDepartmentAllocation(orgID, departmentID, createdBy uuid.UUID, limits LimitOverride, mode AllocationMode) (*Allocation, error) {
	return newAllocation(ScopeDepartment, orgID, departmentID, createdBy, limits, mode)
}

func newAllocation(scope AllocationScope, orgID, departmentID, createdBy uuid.UUID, limits LimitOverride, mode AllocationMode) (*Allocation, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ALLOCATION", "Organization ID cannot be empty")
	}
	if departmentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ALLOCATION", "Department ID cannot be empty")
	}
	if err := validateOverride(limits, mode); err != nil {
		return nil, err
	}

	return &Allocation{
		BaseEntity:     shared.NewBaseEntity(),
		Scope:          scope,
		OrganizationID: orgID,
		DepartmentID:   departmentID,
		Limits:         limits,
		Mode:           mode,
		CreatedBy:      createdBy,
	}, nil
}

// LimitFor returns the allocation's value for a resource kind, or nil
// when the allocation does not define one
func (a *Allocation) LimitFor(kind ResourceKind) *int64 {
	return a.Limits.ValueFor(kind)
}

// Update replaces the allocation's override fields and mode together.
// The same validation applies as on create: replacing an allocation
// must never persist values the constructor would have rejected.
func (a *Allocation) Update(limits LimitOverride, mode AllocationMode) error {
	if err := validateOverride(limits, mode); err != nil {
		return err
	}
	a.Limits = limits
	a.Mode = mode
	a.UpdatedAt = time.Now()
	return nil
}

// validateOverride checks an override's fields and mode: every set
// field is -1 or non-negative, and a non-UNLIMITED allocation defines
// at least one limit.
func validateOverride(limits LimitOverride, mode AllocationMode) error {
	if !mode.IsValid() {
		return shared.NewDomainError("INVALID_ALLOCATION_MODE", "Invalid allocation mode")
	}
	if limits.IsEmpty() && mode != ModeUnlimited {
		return shared.NewDomainError("INVALID_ALLOCATION", "Allocation must define at least one limit")
	}
	for _, kind := range LimitedKinds() {
		if v := limits.ValueFor(kind); v != nil && *v < Unlimited {
			return shared.NewDomainError("INVALID_LIMIT", "Limit must be -1 (unlimited) or non-negative")
		}
	}
	return nil
}

// SetMode updates the allocation mode
func (a *Allocation) SetMode(mode AllocationMode) error {
	if !mode.IsValid() {
		return shared.NewDomainError("INVALID_ALLOCATION_MODE", "Invalid allocation mode")
	}
	a.Mode = mode
	a.UpdatedAt = time.Now()
	return nil
}
