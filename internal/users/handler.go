package users

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/middleware"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/response"
	"github.com/campus-events/backend/pkg/utils"
)

// RoleRequest is the body for PUT /admin/users/:id/role.
type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=student club_admin super_admin"`
}

// StatusRequest is the body for PUT /admin/users/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive suspended"`
}

// BulkStatusRequest is the body for PUT /admin/users/bulk/status.
type BulkStatusRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1,max=100,dive,uuid"`
	Status  string   `json:"status" binding:"required,oneof=active inactive suspended"`
}

// BulkRoleRequest is the body for PUT /admin/users/bulk/role.
type BulkRoleRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1,max=100,dive,uuid"`
	Role    string   `json:"role" binding:"required,oneof=student club_admin super_admin"`
}

// BulkDeleteRequest is the body for DELETE /admin/users/bulk.
type BulkDeleteRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1,max=100,dive,uuid"`
}

// ProfileRequest is the body for PUT /me/profile. Omitted fields are unchanged.
type ProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=100"`
	Phone *string `json:"phone"`
	Year  *int    `json:"year" binding:"omitempty,min=1,max=4"`
}

// ImportUser is one row of POST /admin/users/bulk.
type ImportUser struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	CollegeID  string `json:"college_id"`
	Department string `json:"department"`
	Year       int    `json:"year"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	ClubName   string `json:"club_name"`
}

// ImportRequest is the body for POST /admin/users/bulk.
type ImportRequest struct {
	Users []ImportUser `json:"users" binding:"required,min=1,max=100"`
}

// ListResponse is a page of users.
type ListResponse struct {
	Users []models.UserPublic `json:"users"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// Handler serves /admin/users.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a user management handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /admin/users?q=&role=&status=&department=&page=&limit=.
func (h *Handler) List(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	page := utils.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)
	list, total, err := h.svc.List(c.Request.Context(), actor, ListInput{
		Query:      c.Query("q"),
		Role:       c.Query("role"),
		Status:     c.Query("status"),
		Department: c.Query("department"),
		Limit:      page.Limit,
		Offset:     page.Offset(),
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, ListResponse{Users: list, Total: total, Page: page.Page, Limit: page.Limit})
}

// SetRole handles PUT /admin/users/:id/role.
func (h *Handler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Identity(c)
	u, err := h.svc.SetRole(c.Request.Context(), actor, id, req.Role)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "role updated", u.ToPublic())
}

// SetStatus handles PUT /admin/users/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Identity(c)
	u, err := h.svc.SetStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "status updated", u.ToPublic())
}

// Delete handles DELETE /admin/users/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	actor, _ := middleware.Identity(c)
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "user deleted", nil)
}

func parseIDs(c *gin.Context, raw []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid user id "+s)
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// BulkStatus handles PUT /admin/users/bulk/status.
func (h *Handler) BulkStatus(c *gin.Context) {
	var req BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ids, ok := parseIDs(c, req.UserIDs)
	if !ok {
		return
	}
	actor, _ := middleware.Identity(c)
	n, err := h.svc.BulkStatus(c.Request.Context(), actor, ids, req.Status)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// BulkRole handles PUT /admin/users/bulk/role.
func (h *Handler) BulkRole(c *gin.Context) {
	var req BulkRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ids, ok := parseIDs(c, req.UserIDs)
	if !ok {
		return
	}
	actor, _ := middleware.Identity(c)
	n, err := h.svc.BulkRole(c.Request.Context(), actor, ids, req.Role)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// BulkDelete handles DELETE /admin/users/bulk.
func (h *Handler) BulkDelete(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ids, ok := parseIDs(c, req.UserIDs)
	if !ok {
		return
	}
	actor, _ := middleware.Identity(c)
	n, err := h.svc.BulkDelete(c.Request.Context(), actor, ids)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

// Get handles GET /admin/users/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	actor, _ := middleware.Identity(c)
	u, err := h.svc.ProfileOf(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, u.ToPublic())
}

// Profile handles GET /me/profile.
func (h *Handler) Profile(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	u, err := h.svc.Profile(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, u.ToPublic())
}

// UpdateProfile handles PUT /me/profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Identity(c)
	u, err := h.svc.UpdateProfile(c.Request.Context(), actor, ProfileUpdate(req))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "profile updated", u.ToPublic())
}

// Import handles POST /admin/users/bulk. Temporary passwords appear only in this response.
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rows := make([]ImportRow, len(req.Users))
	for i, u := range req.Users {
		rows[i] = ImportRow(u)
	}
	actor, _ := middleware.Identity(c)
	results, err := h.svc.Import(c.Request.Context(), actor, rows)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	created := 0
	for _, r := range results {
		if r.User != nil {
			created++
		}
	}
	c.Header("Cache-Control", "no-store")
	response.OK(c, gin.H{"created": created, "failed": len(results) - created, "results": results})
}
