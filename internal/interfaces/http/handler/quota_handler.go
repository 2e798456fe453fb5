package handler

import (
	"errors"

	quotaapp "github.com/autoflow/backend/internal/application/quota"
	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// QuotaHandler serves quota checks, enforcement and usage reporting
type QuotaHandler struct {
	BaseHandler
	gate    *quotaapp.Gate
	tracker *quotaapp.ExecutionTracker
}

// NewQuotaHandler creates a new quota handler
func NewQuotaHandler(gate *quotaapp.Gate, tracker *quotaapp.ExecutionTracker) *QuotaHandler {
	return &QuotaHandler{
		gate:    gate,
		tracker: tracker,
	}
}

// RegisterRoutes registers quota routes
func (h *QuotaHandler) RegisterRoutes(rg *gin.RouterGroup) {
	quotaGroup := rg.Group("/quota")
	{
		quotaGroup.POST("/check", h.Check)
		quotaGroup.POST("/enforce", h.Enforce)
		quotaGroup.GET("/limits", h.Limits)
		quotaGroup.GET("/usage", h.UsageSummary)
	}

	usage := rg.Group("/usage")
	{
		usage.POST("/storage/adjust", h.AdjustStorage)
		usage.POST("/errors", h.RecordError)
	}

	rg.POST("/executions/track", h.TrackExecution)
}

// Check evaluates a quota decision without consuming any usage
func (h *QuotaHandler) Check(c *gin.Context) {
	owner, resource, amount, ok := h.bindQuotaRequest(c)
	if !ok {
		return
	}

	decision, err := h.gate.Check(c.Request.Context(), owner, resource, amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, decision)
}

// Enforce evaluates a quota decision and, when allowed, consumes the
// requested amount
func (h *QuotaHandler) Enforce(c *gin.Context) {
	owner, resource, amount, ok := h.bindQuotaRequest(c)
	if !ok {
		return
	}

	decision, err := h.gate.Enforce(c.Request.Context(), owner, resource, amount)
	if err != nil {
		var exceeded *quotaapp.QuotaExceededError
		if errors.As(err, &exceeded) {
			c.JSON(exceeded.HTTPStatusCode(), dto.Response{
				Success: false,
				Data:    decision,
				Error: &dto.ErrorInfo{
					Code:      dto.ErrCodeQuotaExceeded,
					Message:   exceeded.Message,
					RequestID: getRequestID(c),
				},
			})
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, decision)
}

// Limits resolves the effective limit set for an owner
func (h *QuotaHandler) Limits(c *gin.Context) {
	owner, ok := h.bindOwnerQuery(c)
	if !ok {
		return
	}

	limits, err := h.gate.ResolveLimits(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, limits)
}

// UsageSummary reports current usage against each limitable resource
func (h *QuotaHandler) UsageSummary(c *gin.Context) {
	owner, ok := h.bindOwnerQuery(c)
	if !ok {
		return
	}

	summary, err := h.gate.GetUsageSummary(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// TrackExecution records one workflow execution attempt
func (h *QuotaHandler) TrackExecution(c *gin.Context) {
	var req dto.TrackExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	owner, err := req.Owner.ToOwnerContext()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.tracker.Track(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// AdjustStorage applies a storage delta to an owner's gauge
func (h *QuotaHandler) AdjustStorage(c *gin.Context) {
	var req dto.AdjustStorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	owner, err := req.Owner.ToOwnerContext()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	newValue, err := h.gate.AdjustStorage(c.Request.Context(), owner, req.DeltaBytes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.StorageResponse{StorageBytes: newValue})
}

// RecordError counts a failed execution for analytics
func (h *QuotaHandler) RecordError(c *gin.Context) {
	var req dto.RecordErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	owner, err := req.Owner.ToOwnerContext()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.gate.RecordError(c.Request.Context(), owner)
	h.NoContent(c)
}

// bindQuotaRequest binds and validates a check/enforce request body
func (h *QuotaHandler) bindQuotaRequest(c *gin.Context) (quota.OwnerContext, quota.ResourceKind, int64, bool) {
	var req dto.CheckQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return quota.OwnerContext{}, "", 0, false
	}

	owner, err := req.Owner.ToOwnerContext()
	if err != nil {
		h.HandleError(c, err)
		return quota.OwnerContext{}, "", 0, false
	}

	resource := quota.ResourceKind(req.Resource)
	if !resource.IsValid() {
		h.BadRequest(c, "Unknown resource kind: "+req.Resource)
		return quota.OwnerContext{}, "", 0, false
	}

	amount := req.Amount
	if amount == 0 {
		amount = 1
	}

	return owner, resource, amount, true
}

// bindOwnerQuery binds an owner context from query parameters
func (h *QuotaHandler) bindOwnerQuery(c *gin.Context) (quota.OwnerContext, bool) {
	var req dto.OwnerContextRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return quota.OwnerContext{}, false
	}

	owner, err := req.ToOwnerContext()
	if err != nil {
		h.HandleError(c, err)
		return quota.OwnerContext{}, false
	}
	return owner, true
}
