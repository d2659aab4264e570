package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/middleware"
	"github.com/campus-events/backend/pkg/response"
)

// UpdateStatusRequest is the body for PUT /events/:id/registrations/:regId.
// The status value is checked by the service after ownership.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reopen bool   `json:"reopen"`
}

// AttendanceRequest is the body for PUT /events/:id/registrations/:regId/attendance.
type AttendanceRequest struct {
	Attended *bool `json:"attended"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func ids(c *gin.Context) (eventID, regID uuid.UUID, ok bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, uuid.Nil, false
	}
	if c.Param("regId") == "" {
		return eventID, uuid.Nil, true
	}
	regID, err = uuid.Parse(c.Param("regId"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return uuid.Nil, uuid.Nil, false
	}
	return eventID, regID, true
}

// Register handles POST /events/:id/register (students).
func (h *Handler) Register(c *gin.Context) {
	eventID, _, ok := ids(c)
	if !ok {
		return
	}
	actor, _ := middleware.Identity(c)
	reg, err := h.svc.Register(c.Request.Context(), actor, eventID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, reg)
}

// List handles GET /events/:id/registrations?status=&q= (owning club or super admin).
func (h *Handler) List(c *gin.Context) {
	eventID, _, ok := ids(c)
	if !ok {
		return
	}
	actor, _ := middleware.Identity(c)
	roster, err := h.svc.ListForEvent(c.Request.Context(), actor, eventID, c.Query("status"), c.Query("q"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, roster)
}

// badBody answers a malformed body. Callers that may not manage the
// registration hear the authorization error instead.
func (h *Handler) badBody(c *gin.Context, eventID, regID uuid.UUID, msg string) {
	actor, _ := middleware.Identity(c)
	if _, _, err := h.svc.Manageable(c.Request.Context(), actor, eventID, regID); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.BadRequest(c, msg)
}

// UpdateStatus handles PUT /events/:id/registrations/:regId.
func (h *Handler) UpdateStatus(c *gin.Context) {
	eventID, regID, ok := ids(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, eventID, regID, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Identity(c)
	reg, err := h.svc.UpdateStatus(c.Request.Context(), actor, eventID, regID, UpdateStatusInput{Status: req.Status, Reopen: req.Reopen})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "registration "+string(reg.Status), reg)
}

// Cancel handles DELETE /events/:id/registrations/:regId (registrant or super admin).
func (h *Handler) Cancel(c *gin.Context) {
	eventID, regID, ok := ids(c)
	if !ok {
		return
	}
	actor, _ := middleware.Identity(c)
	reg, err := h.svc.Cancel(c.Request.Context(), actor, eventID, regID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "registration cancelled", reg)
}

// Attendance handles PUT /events/:id/registrations/:regId/attendance.
func (h *Handler) Attendance(c *gin.Context) {
	eventID, regID, ok := ids(c)
	if !ok {
		return
	}
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, eventID, regID, "invalid request: "+err.Error())
		return
	}
	if req.Attended == nil {
		h.badBody(c, eventID, regID, "attended is required")
		return
	}
	actor, _ := middleware.Identity(c)
	reg, err := h.svc.MarkAttended(c.Request.Context(), actor, eventID, regID, *req.Attended)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, reg)
}

// Mine handles GET /me/registrations.
func (h *Handler) Mine(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	list, err := h.svc.Mine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}
