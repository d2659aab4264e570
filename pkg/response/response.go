package response

import (
	"net/http"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// OKMessage sends a 200 JSON response with a message and optional data.
func OKMessage(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: msg, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends a 202 JSON response for queued work.
func Accepted(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Message: msg, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Code: "validation_error", Message: msg})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Code: "unauthenticated", Message: msg})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, Body{Success: false, Code: "not_authorized", Message: "not authorized"})
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Code: "not_found", Message: msg})
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, Body{Success: false, Code: "rate_limited", Message: msg})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Code: "unavailable", Message: msg})
}

// Internal sends 500.
func Internal(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Code: "internal_error", Message: "something went wrong"})
}

// Error renders err through the apperr taxonomy. Internal errors are logged with
// their cause; denied actions are logged at debug with their reason.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	ae := apperr.As(err)
	switch ae.Kind {
	case apperr.KindInternal:
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
	case apperr.KindAuthorization:
		if logger != nil {
			logger.Debug("request denied", zap.String("path", c.FullPath()), zap.String("reason", ae.Reason))
		}
	}
	c.JSON(apperr.HTTPStatus(ae.Kind), Body{Success: false, Code: ae.Code, Message: ae.Message})
}
