package notifications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/email-logs?event_id=&limit=. Super admin only.
func (h *Handler) List(c *gin.Context) {
	var eventID *uuid.UUID
	if s := c.Query("event_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid event id")
			return
		}
		eventID = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	logs, err := h.repo.List(c.Request.Context(), eventID, limit)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, logs)
}
