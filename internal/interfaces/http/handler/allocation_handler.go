package handler

import (
	quotaapp "github.com/autoflow/backend/internal/application/quota"
	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AllocationHandler serves allocation administration endpoints
type AllocationHandler struct {
	BaseHandler
	service *quotaapp.AllocationService
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(service *quotaapp.AllocationService) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// RegisterRoutes registers allocation routes
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	allocations := rg.Group("/allocations")
	{
		allocations.GET("/organizations/:orgID", h.ListByOrganization)
		allocations.PUT("/departments/:departmentID", h.SetDepartmentAllocation)
		allocations.DELETE("/departments/:departmentID", h.RemoveDepartmentAllocations)
		allocations.PUT("/departments/:departmentID/members/:userID", h.SetMemberAllocation)
		allocations.DELETE("/departments/:departmentID/members/:userID", h.RemoveMemberAllocation)
	}
}

// ListByOrganization lists every allocation under an organization
func (h *AllocationHandler) ListByOrganization(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("orgID"))
	if err != nil {
		h.BadRequest(c, "Invalid organization ID")
		return
	}

	allocations, err := h.service.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAllocationResponses(allocations))
}

// SetDepartmentAllocation creates or replaces a department allocation
func (h *AllocationHandler) SetDepartmentAllocation(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("departmentID"))
	if err != nil {
		h.BadRequest(c, "Invalid department ID")
		return
	}

	req, ok := h.bindAllocationRequest(c)
	if !ok {
		return
	}

	allocation, err := h.service.SetDepartmentAllocation(
		c.Request.Context(),
		req.orgID, req.orgPlanID, departmentID, req.actorID,
		req.limits, req.mode,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAllocationResponse(allocation))
}

// SetMemberAllocation creates or replaces a member allocation
func (h *AllocationHandler) SetMemberAllocation(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("departmentID"))
	if err != nil {
		h.BadRequest(c, "Invalid department ID")
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	req, ok := h.bindAllocationRequest(c)
	if !ok {
		return
	}

	allocation, err := h.service.SetMemberAllocation(
		c.Request.Context(),
		req.orgID, req.orgPlanID, departmentID, userID, req.actorID,
		req.limits, req.mode,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAllocationResponse(allocation))
}

// RemoveDepartmentAllocations removes a department's allocation and
// every member allocation under it
func (h *AllocationHandler) RemoveDepartmentAllocations(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("departmentID"))
	if err != nil {
		h.BadRequest(c, "Invalid department ID")
		return
	}

	if err := h.service.RemoveDepartmentAllocations(c.Request.Context(), departmentID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RemoveMemberAllocation removes one member's allocation
func (h *AllocationHandler) RemoveMemberAllocation(c *gin.Context) {
	departmentID, err := uuid.Parse(c.Param("departmentID"))
	if err != nil {
		h.BadRequest(c, "Invalid department ID")
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.service.RemoveMemberAllocation(c.Request.Context(), userID, departmentID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

type allocationRequest struct {
	orgID     uuid.UUID
	orgPlanID string
	actorID   uuid.UUID
	limits    quota.LimitOverride
	mode      quota.AllocationMode
}

// bindAllocationRequest binds and validates the shared allocation body
func (h *AllocationHandler) bindAllocationRequest(c *gin.Context) (allocationRequest, bool) {
	var req dto.SetAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return allocationRequest{}, false
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		h.BadRequest(c, "Invalid organization ID")
		return allocationRequest{}, false
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		h.BadRequest(c, "Invalid actor ID")
		return allocationRequest{}, false
	}

	mode := quota.AllocationMode(req.Mode)
	if !mode.IsValid() {
		h.BadRequest(c, "Unknown allocation mode: "+req.Mode)
		return allocationRequest{}, false
	}

	return allocationRequest{
		orgID:     orgID,
		orgPlanID: req.OrganizationPlanID,
		actorID:   actorID,
		limits:    req.Limits,
		mode:      mode,
	}, true
}
