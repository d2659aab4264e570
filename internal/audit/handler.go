package audit

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/response"
	"github.com/campus-events/backend/pkg/utils"
)

// Handler serves GET /admin/audit-logs.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an audit handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// ListResponse is a page of audit records.
type ListResponse struct {
	Logs  []models.AuditLog `json:"logs"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// List handles GET /admin/audit-logs?action=&actor_id=&page=&limit=.
func (h *Handler) List(c *gin.Context) {
	pg := utils.ParsePage(c.Query("page"), c.Query("limit"), 50, 200)
	f := Filter{Limit: pg.Limit, Offset: pg.Offset()}
	if a := c.Query("action"); a != "" {
		if !models.ValidAuditAction(a) {
			response.BadRequest(c, "unknown action")
			return
		}
		f.Action = a
	}
	if s := c.Query("actor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid actor_id")
			return
		}
		f.ActorID = &id
	}
	logs, total, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	response.OK(c, ListResponse{Logs: logs, Total: total, Page: pg.Page, Limit: pg.Limit})
}
