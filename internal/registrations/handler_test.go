package registrations

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func router(h *Handler, id authz.Identity) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(authz.WithIdentity(c.Request.Context(), id))
		c.Next()
	})
	r.PUT("/events/:id/registrations/:regId", h.UpdateStatus)
	r.PUT("/events/:id/registrations/:regId/attendance", h.Attendance)
	return r
}

func put(r http.Handler, path string, body any) (*httptest.ResponseRecorder, response.Body) {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out response.Body
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHandlerChecksOwnershipBeforeBody(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc, nil)
	e := f.event(3)
	reg, err := f.svc.Register(t.Context(), f.user(models.RoleStudent), e.ID)
	require.NoError(t, err)
	path := "/events/" + e.ID.String() + "/registrations/" + reg.ID.String()
	other := router(h, f.user(models.RoleClubAdmin))

	for _, body := range []map[string]any{
		{"status": "bogus"},
		{"status": 7},
		{},
	} {
		rec, out := put(other, path, body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "body %v", body)
		assert.Equal(t, "not authorized", out.Message)

		rec, _ = put(other, path+"/attendance", body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "attendance body %v", body)
	}

	owner := router(h, f.club)
	rec, out := put(owner, path, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status must be pending, confirmed or rejected", out.Message)

	rec, _ = put(owner, path, map[string]any{"status": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = put(owner, path+"/attendance", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "attended is required", out.Message)

	rec, _ = put(owner, path, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RegistrationConfirmed, f.db.regs[reg.ID].Status)
}

func TestHandlerHidesDraftRoster(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc, nil)
	e := f.event(3)
	reg, err := f.svc.Register(t.Context(), f.user(models.RoleStudent), e.ID)
	require.NoError(t, err)
	f.db.events[e.ID].Status = models.EventStatusDraft
	path := "/events/" + e.ID.String() + "/registrations/" + reg.ID.String()

	rec, _ := put(router(h, f.user(models.RoleClubAdmin)), path, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
