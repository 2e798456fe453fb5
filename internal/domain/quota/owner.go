package quota

import (
	"github.com/google/uuid"
)

// OwnerKind identifies the kind of entity usage is counted against
type OwnerKind string

const (
	OwnerUser         OwnerKind = "user"
	OwnerDepartment   OwnerKind = "department"
	OwnerOrganization OwnerKind = "organization"
)

// String returns the string representation of OwnerKind
func (k OwnerKind) String() string {
	return string(k)
}

// IsValid returns true if the owner kind is known
func (k OwnerKind) IsValid() bool {
	switch k {
	case OwnerUser, OwnerDepartment, OwnerOrganization:
		return true
	}
	return false
}

// Owner is a (kind, id) pair identifying a usage bucket
type Owner struct {
	Kind OwnerKind
	ID   uuid.UUID
}

// OwnerContext describes the actor performing a resource-consuming
// action, with enough plan/membership context for limit resolution.
// It is supplied by the calling request handler: who the actor is and
// which plans apply are external collaborator concerns.
type OwnerContext struct {
	UserID uuid.UUID

	// OrganizationID is nil for standalone (personal-plan) accounts
	OrganizationID *uuid.UUID

	// DepartmentID is nil when the user acts outside a department
	DepartmentID *uuid.UUID

	// PlanID is the user's personal plan identifier
	PlanID string

	// OrganizationPlanID is the organization's plan identifier,
	// empty when OrganizationID is nil
	OrganizationPlanID string

	// WorkspaceMode marks unmetered accounts: executions are tracked
	// for analytics but never blocked
	WorkspaceMode bool
}

// InOrganization returns true when the owner belongs to an organization
func (o OwnerContext) InOrganization() bool {
	return o.OrganizationID != nil && *o.OrganizationID != uuid.Nil
}

// InDepartment returns true when the owner is scoped to a department
func (o OwnerContext) InDepartment() bool {
	return o.DepartmentID != nil && *o.DepartmentID != uuid.Nil
}

// CounterOwner returns the usage bucket a resolved limit counts
// against. The bucket follows the limit source: member and personal
// plan limits meter the user, department overrides meter the
// department, organization plan limits meter the organization.
func (o OwnerContext) CounterOwner(source LimitSource) Owner {
	switch source {
	case SourceDepartment:
		if o.InDepartment() {
			return Owner{Kind: OwnerDepartment, ID: *o.DepartmentID}
		}
	case SourceOrganization:
		if o.InOrganization() {
			return Owner{Kind: OwnerOrganization, ID: *o.OrganizationID}
		}
	}
	return Owner{Kind: OwnerUser, ID: o.UserID}
}
