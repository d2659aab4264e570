package clubs

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/middleware"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/response"
)

// Directory lists clubs. *Repository satisfies it.
type Directory interface {
	ListActive(ctx context.Context) ([]models.Club, error)
	Stats(ctx context.Context) ([]models.ClubStats, error)
}

// ClubUpdater edits a club admin's club fields. *users.Repository satisfies it.
type ClubUpdater interface {
	UpdateClub(ctx context.Context, id uuid.UUID, name, description string) (*models.User, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// UpdateRequest is the body for PUT /clubs/me.
type UpdateRequest struct {
	Name        string `json:"club_name" binding:"required,max=120"`
	Description string `json:"club_description" binding:"max=1000"`
}

// Handler serves the club directory.
type Handler struct {
	dir     Directory
	updater ClubUpdater
	audit   Auditor
	logger  *zap.Logger
}

// NewHandler creates a clubs handler.
func NewHandler(dir Directory, updater ClubUpdater, auditor Auditor, logger *zap.Logger) *Handler {
	return &Handler{dir: dir, updater: updater, audit: auditor, logger: logger}
}

// List handles GET /clubs.
func (h *Handler) List(c *gin.Context) {
	list, err := h.dir.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Club{}
	}
	response.OK(c, list)
}

// AdminList handles GET /admin/clubs.
func (h *Handler) AdminList(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	stats, err := h.dir.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	var events, regs int
	for _, s := range stats {
		events += s.TotalEvents
		regs += s.Registrations
	}
	avg := 0.0
	if events > 0 {
		avg = float64(regs) / float64(events)
	}
	if stats == nil {
		stats = []models.ClubStats{}
	}
	response.OK(c, gin.H{
		"clubs":               stats,
		"total_clubs":         len(stats),
		"total_events":        events,
		"total_registrations": regs,
		"avg_registrations":   avg,
	})
}

// UpdateMine handles PUT /clubs/me for club admins.
func (h *Handler) UpdateMine(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	if actor.Role != models.RoleClubAdmin {
		response.Error(c, h.logger, apperr.Forbidden("update club: "+string(authz.ReasonWrongRole)))
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "club_name is required")
		return
	}
	u, err := h.updater.UpdateClub(c.Request.Context(), actor.UserID, name, strings.TrimSpace(req.Description))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.audit.Record(c.Request.Context(), audit.Entry{
		Action:      models.AuditUserUpdated,
		Actor:       actor,
		TargetType:  models.TargetUser,
		TargetID:    u.ID.String(),
		Description: "updated club profile",
		Metadata:    map[string]any{"club_name": u.ClubName},
	})
	response.OKMessage(c, "club updated", u.ToPublic())
}
