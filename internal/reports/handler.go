package reports

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/middleware"
	"github.com/campus-events/backend/pkg/response"
)

// Handler serves CSV downloads.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a reports handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func sendCSV(c *gin.Context, f *File) {
	c.Header("Content-Disposition", `attachment; filename="`+f.Name+`"`)
	c.Header("Cache-Control", "no-store")
	c.Header("X-Row-Count", strconv.Itoa(f.Rows))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", f.Body)
}

// ExportRegistrations handles GET /events/:id/registrations/export.
func (h *Handler) ExportRegistrations(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	actor, _ := middleware.Identity(c)
	f, err := h.svc.EventRegistrations(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	sendCSV(c, f)
}

// System handles GET /admin/reports/:type. With ?archive=1 the CSV goes to S3 and a link is returned.
func (h *Handler) System(c *gin.Context) {
	actor, _ := middleware.Identity(c)
	kind := c.Param("type")
	if a := c.Query("archive"); a == "1" || a == "true" {
		out, err := h.svc.Archive(c.Request.Context(), actor, kind)
		if errors.Is(err, ErrArchiveDisabled) {
			response.ServiceUnavailable(c, err.Error())
			return
		}
		if err != nil {
			response.Error(c, h.logger, err)
			return
		}
		response.OK(c, out)
		return
	}
	f, err := h.svc.System(c.Request.Context(), actor, kind)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	sendCSV(c, f)
}
