package events

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/middleware"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/response"
	"github.com/campus-events/backend/pkg/utils"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title       string  `json:"title" binding:"required,max=200"`
	Description string  `json:"description" binding:"required"`
	Date        string  `json:"date" binding:"required"`
	Time        string  `json:"time" binding:"omitempty,hhmm"`
	Venue       string  `json:"venue" binding:"required,max=200"`
	Capacity    *int    `json:"capacity" binding:"omitempty,min=1"`
	Category    string  `json:"category" binding:"omitempty,category"`
	PosterURL   string  `json:"poster_url" binding:"omitempty,url"`
	ClubID      *string `json:"club_id" binding:"omitempty,uuid"` // super admin only
}

// UpdateRequest is the body for PUT /events/:id. Absent fields are unchanged.
// Values are checked by the service once the caller is known to own the event.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Venue       *string `json:"venue"`
	Capacity    *int    `json:"capacity"`
	Status      *string `json:"status"`
	Category    *string `json:"category"`
	PosterURL   *string `json:"poster_url"`
}

// ListResponse is a page of events.
type ListResponse struct {
	Events []models.Event `json:"events"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /events (club admin, or super admin naming club_id).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Identity(c)

	in := CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Venue:       req.Venue,
		Capacity:    req.Capacity,
		Category:    req.Category,
		PosterURL:   req.PosterURL,
	}
	if req.ClubID != nil {
		id, err := uuid.Parse(*req.ClubID)
		if err != nil {
			response.BadRequest(c, "invalid club_id")
			return
		}
		in.ClubID = &id
	}
	e, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, e)
}

// List handles GET /events?mine=&status=&category=&q=&upcoming=&page=&limit=.
func (h *Handler) List(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	page := utils.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)
	events, total, err := h.svc.List(c.Request.Context(), actor, ListInput{
		Mine:     c.Query("mine") == "1" || c.Query("mine") == "true",
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Query:    c.Query("q"),
		Upcoming: c.Query("upcoming") == "1" || c.Query("upcoming") == "true",
		Limit:    page.Limit,
		Offset:   page.Offset(),
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	response.OK(c, ListResponse{Events: events, Total: total, Page: page.Page, Limit: page.Limit})
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	actor, _ := middleware.Identity(c)
	e, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, e)
}

// Update handles PUT /events/:id (owning club or super admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	actor, _ := middleware.Identity(c)
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Non-owners hear 403 whatever they sent.
		if _, aerr := h.svc.Editable(c.Request.Context(), actor, id); aerr != nil {
			response.Error(c, h.logger, aerr)
			return
		}
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Update(c.Request.Context(), actor, id, UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Venue:       req.Venue,
		Capacity:    req.Capacity,
		Status:      req.Status,
		Category:    req.Category,
		PosterURL:   req.PosterURL,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "event updated", e)
}

// Delete handles DELETE /events/:id (owning club or super admin).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	actor, _ := middleware.Identity(c)
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "event deleted", nil)
}
