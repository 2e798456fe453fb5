package handler

import (
	"context"
	"net/http"

	"github.com/autoflow/backend/internal/infrastructure/persistence"
	"github.com/autoflow/backend/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
)

// SystemHandler serves health checks and operational endpoints
type SystemHandler struct {
	BaseHandler
	db     *persistence.Database
	rollup *scheduler.RollupScheduler
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(db *persistence.Database, rollup *scheduler.RollupScheduler) *SystemHandler {
	return &SystemHandler{db: db, rollup: rollup}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)

	rollups := rg.Group("/rollups")
	{
		rollups.POST("/hourly", h.TriggerHourlyRollup)
		rollups.POST("/daily", h.TriggerDailyRollup)
	}
}

// Health reports liveness and database connectivity
func (h *SystemHandler) Health(c *gin.Context) {
	status := gin.H{
		"status":           "ok",
		"rollup_scheduler": h.rollup.IsRunning(),
	}

	if err := h.db.Ping(); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status["database"] = "ok"

	c.JSON(http.StatusOK, status)
}

// TriggerHourlyRollup runs an hourly rollup pass immediately
func (h *SystemHandler) TriggerHourlyRollup(c *gin.Context) {
	// detached context: the job outlives the request
	if err := h.rollup.TriggerHourlyRollup(context.Background()); err != nil {
		h.Error(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
		return
	}
	c.Status(http.StatusAccepted)
}

// TriggerDailyRollup runs a daily rollup pass immediately
func (h *SystemHandler) TriggerDailyRollup(c *gin.Context) {
	// detached context: the job outlives the request
	if err := h.rollup.TriggerDailyRollup(context.Background()); err != nil {
		h.Error(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
		return
	}
	c.Status(http.StatusAccepted)
}
