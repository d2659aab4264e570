package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/auth"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/response"
)

// ContextIdentity is the gin context key mirroring the request context identity.
const ContextIdentity = "identity"

// UserResolver loads the account behind a token. *auth.Repository satisfies it.
type UserResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticator validates bearer tokens and resolves them to live accounts.
type Authenticator struct {
	jwt    *auth.JWTService
	users  UserResolver
	logger *zap.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(jwt *auth.JWTService, users UserResolver, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{jwt: jwt, users: users, logger: logger}
}

// JWT requires a valid bearer token whose user still exists and is active.
// The role is taken from the user row, so role changes apply without reissuing tokens.
func (a *Authenticator) JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		if !a.authenticate(c, header) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalJWT authenticates when an Authorization header is present and
// lets anonymous requests through. A present but invalid header is rejected.
func (a *Authenticator) OptionalJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if !a.authenticate(c, header) {
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context, header string) bool {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		response.Unauthorized(c, "invalid authorization header")
		return false
	}
	claims, err := a.jwt.Validate(parts[1])
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return false
	}
	user, err := a.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			response.Unauthorized(c, "account no longer exists")
			return false
		}
		response.Error(c, a.logger, err)
		return false
	}
	if user.Status != models.UserStatusActive {
		response.Unauthorized(c, "account is "+string(user.Status))
		return false
	}
	id := authz.Identity{UserID: user.ID, Role: user.Role}
	c.Request = c.Request.WithContext(authz.WithIdentity(c.Request.Context(), id))
	c.Set(ContextIdentity, id)
	return true
}

// Identity returns the caller attached by JWT or OptionalJWT.
func Identity(c *gin.Context) (authz.Identity, bool) {
	return authz.FromContext(c.Request.Context())
}
