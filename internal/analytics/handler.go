package analytics

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/middleware"
	"github.com/campus-events/backend/pkg/response"
)

// SnapshotRequest is the body for POST /admin/analytics/snapshots.
type SnapshotRequest struct {
	Type string `json:"type" binding:"required"`
}

// Handler serves the super-admin dashboards.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Pulse handles GET /admin/analytics/pulse.
func (h *Handler) Pulse(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	p, err := h.svc.Pulse(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, p)
}

// Users handles GET /admin/analytics/users.
func (h *Handler) Users(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	s, err := h.svc.Users(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, s)
}

// Events handles GET /admin/analytics/events.
func (h *Handler) Events(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	s, err := h.svc.Events(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, s)
}

// Clubs handles GET /admin/analytics/clubs.
func (h *Handler) Clubs(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	list, err := h.svc.Clubs(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// RiskAlerts handles GET /admin/analytics/risk-alerts.
func (h *Handler) RiskAlerts(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	r, err := h.svc.RiskAlerts(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, r)
}

// Growth handles GET /admin/analytics/growth.
func (h *Handler) Growth(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	g, err := h.svc.Growth(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, g)
}

// Approvals handles GET /admin/analytics/approvals.
func (h *Handler) Approvals(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	a, err := h.svc.Approvals(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, a)
}

// RequestSnapshot handles POST /admin/analytics/snapshots.
func (h *Handler) RequestSnapshot(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id, err := h.svc.RequestSnapshot(c.Request.Context(), actor, req.Type)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Accepted(c, "snapshot queued", gin.H{"job_id": id})
}

// Snapshots handles GET /admin/analytics/snapshots.
func (h *Handler) Snapshots(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	list, err := h.svc.Snapshots(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}
