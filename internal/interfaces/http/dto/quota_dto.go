package dto

import (
	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OwnerContextRequest identifies the acting user and their place in
// the tenancy hierarchy
type OwnerContextRequest struct {
	UserID             string  `json:"user_id" form:"user_id" binding:"required,uuid"`
	OrganizationID     *string `json:"organization_id,omitempty" form:"organization_id" binding:"omitempty,uuid"`
	DepartmentID       *string `json:"department_id,omitempty" form:"department_id" binding:"omitempty,uuid"`
	PlanID             string  `json:"plan_id" form:"plan_id"`
	OrganizationPlanID string  `json:"organization_plan_id,omitempty" form:"organization_plan_id"`
	WorkspaceMode      bool    `json:"workspace_mode,omitempty" form:"workspace_mode"`
}

// ToOwnerContext converts the request into a domain owner context
func (r *OwnerContextRequest) ToOwnerContext() (quota.OwnerContext, error) {
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return quota.OwnerContext{}, shared.NewDomainError("INVALID_OWNER", "Invalid user ID")
	}

	owner := quota.OwnerContext{
		UserID:             userID,
		PlanID:             r.PlanID,
		OrganizationPlanID: r.OrganizationPlanID,
		WorkspaceMode:      r.WorkspaceMode,
	}

	if r.OrganizationID != nil && *r.OrganizationID != "" {
		orgID, err := uuid.Parse(*r.OrganizationID)
		if err != nil {
			return quota.OwnerContext{}, shared.NewDomainError("INVALID_OWNER", "Invalid organization ID")
		}
		owner.OrganizationID = &orgID
	}

	if r.DepartmentID != nil && *r.DepartmentID != "" {
		deptID, err := uuid.Parse(*r.DepartmentID)
		if err != nil {
			return quota.OwnerContext{}, shared.NewDomainError("INVALID_OWNER", "Invalid department ID")
		}
		owner.DepartmentID = &deptID
	}

	return owner, nil
}

// CheckQuotaRequest asks whether an action of a given size may proceed
type CheckQuotaRequest struct {
	Owner    OwnerContextRequest `json:"owner" binding:"required"`
	Resource string              `json:"resource" binding:"required"`
	Amount   int64               `json:"amount" binding:"omitempty,min=1"`
}

// TrackExecutionRequest records one workflow execution attempt
type TrackExecutionRequest struct {
	Owner OwnerContextRequest `json:"owner" binding:"required"`
}

// AdjustStorageRequest applies a storage delta in bytes, negative on
// deletes
type AdjustStorageRequest struct {
	Owner      OwnerContextRequest `json:"owner" binding:"required"`
	DeltaBytes int64               `json:"delta_bytes" binding:"required"`
}

// RecordErrorRequest counts one failed execution for analytics
type RecordErrorRequest struct {
	Owner OwnerContextRequest `json:"owner" binding:"required"`
}

// StorageResponse reports the storage gauge after an adjustment
type StorageResponse struct {
	StorageBytes int64 `json:"storage_bytes"`
}

// SetAllocationRequest creates or replaces a department or member
// allocation
type SetAllocationRequest struct {
	OrganizationID     string              `json:"organization_id" binding:"required,uuid"`
	OrganizationPlanID string              `json:"organization_plan_id" binding:"required"`
	ActorID            string              `json:"actor_id" binding:"required,uuid"`
	Limits             quota.LimitOverride `json:"limits"`
	Mode               string              `json:"mode" binding:"required"`
}

// AllocationResponse is the API shape of an allocation
type AllocationResponse struct {
	ID             string              `json:"id"`
	Scope          string              `json:"scope"`
	OrganizationID string              `json:"organization_id"`
	DepartmentID   string              `json:"department_id"`
	UserID         *string             `json:"user_id,omitempty"`
	Limits         quota.LimitOverride `json:"limits"`
	Mode           string              `json:"mode"`
	CreatedBy      string              `json:"created_by"`
	TimestampResponse
}

// NewAllocationResponse builds an allocation response from the domain
// entity
func NewAllocationResponse(a *quota.Allocation) AllocationResponse {
	resp := AllocationResponse{
		ID:             a.ID.String(),
		Scope:          string(a.Scope),
		OrganizationID: a.OrganizationID.String(),
		DepartmentID:   a.DepartmentID.String(),
		Limits:         a.Limits,
		Mode:           string(a.Mode),
		CreatedBy:      a.CreatedBy.String(),
		TimestampResponse: TimestampResponse{
			CreatedAt: a.CreatedAt,
			UpdatedAt: a.UpdatedAt,
		},
	}
	if a.UserID != nil {
		userID := a.UserID.String()
		resp.UserID = &userID
	}
	return resp
}

// NewAllocationResponses maps a slice of allocations
func NewAllocationResponses(allocations []*quota.Allocation) []AllocationResponse {
	responses := make([]AllocationResponse, len(allocations))
	for i, a := range allocations {
		responses[i] = NewAllocationResponse(a)
	}
	return responses
}
