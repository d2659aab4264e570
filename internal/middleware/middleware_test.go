package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/auth"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user")
}

func newRouter(a *Authenticator, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		id, ok := Identity(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok, "role": id.Role, "user_id": id.UserID})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWT(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	active := &models.User{ID: uuid.New(), Role: models.RoleClubAdmin, Status: models.UserStatusActive}
	suspended := &models.User{ID: uuid.New(), Role: models.RoleStudent, Status: models.UserStatusSuspended}
	users := fakeUsers{active.ID: active, suspended.ID: suspended}
	a := NewAuthenticator(jwtSvc, users, nil)
	r := newRouter(a, a.JWT())

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "nope").Code)
	})

	t.Run("role comes from the user row", func(t *testing.T) {
		token, err := jwtSvc.Generate(active.ID, string(models.RoleStudent))
		require.NoError(t, err)

		rec := do(r, token)
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(models.RoleClubAdmin), body["role"])
	})

	t.Run("deleted user is unauthenticated", func(t *testing.T) {
		token, err := jwtSvc.Generate(uuid.New(), string(models.RoleStudent))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do(r, token).Code)
	})

	t.Run("suspended user is unauthenticated", func(t *testing.T) {
		token, err := jwtSvc.Generate(suspended.ID, string(models.RoleStudent))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do(r, token).Code)
	})
}

func TestOptionalJWT(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	a := NewAuthenticator(jwtSvc, fakeUsers{}, nil)
	r := newRouter(a, a.OptionalJWT())

	rec := do(r, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)

	assert.Equal(t, http.StatusUnauthorized, do(r, "bad").Code)
}

func TestRequireAction(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	student := &models.User{ID: uuid.New(), Role: models.RoleStudent, Status: models.UserStatusActive}
	admin := &models.User{ID: uuid.New(), Role: models.RoleSuperAdmin, Status: models.UserStatusActive}
	a := NewAuthenticator(jwtSvc, fakeUsers{student.ID: student, admin.ID: admin}, nil)
	r := newRouter(a, a.JWT(), RequireAction(authz.ViewAnalytics, nil))

	studentToken, _ := jwtSvc.Generate(student.ID, "student")
	rec := do(r, studentToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body response.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not authorized", body.Message)

	adminToken, _ := jwtSvc.Generate(admin.ID, "super_admin")
	assert.Equal(t, http.StatusOK, do(r, adminToken).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	r := gin.New()
	r.GET("/x", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, "").Code)
	assert.Equal(t, http.StatusOK, do(r, "").Code)
	rec := do(r, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	r := gin.New()
	r.GET("/x", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(r, "").Code)
	}
}

func TestCORS(t *testing.T) {
	send := func(origins []string, method, origin string, preflight bool) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(CORS(origins))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })
		req := httptest.NewRequest(method, "/x", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if preflight {
			req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	listed := []string{"http://app.test", "http://admin.test/"}

	rec := send(listed, http.MethodOptions, "http://app.test", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")

	rec = send(listed, http.MethodGet, "http://admin.test", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://admin.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Row-Count")

	rec = send(listed, http.MethodOptions, "http://evil.test", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = send(listed, http.MethodGet, "http://evil.test", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = send([]string{"*"}, http.MethodGet, "http://any.test", false)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	// A bare OPTIONS is not a preflight and reaches the route.
	rec = send(listed, http.MethodOptions, "", false)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
