package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/pkg/response"
)

// RequireAction rejects callers whose role can never perform action.
// Ownership is checked by the services once the target is loaded.
func RequireAction(action authz.Action, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !authz.RoleMay(id, action) {
			response.Error(c, logger, apperr.Forbidden(action.String()+": "+string(authz.ReasonWrongRole)))
			c.Abort()
			return
		}
		c.Next()
	}
}
