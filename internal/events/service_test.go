package events

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/config"
	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	events  map[uuid.UUID]*models.Event
	held    map[uuid.UUID]int
	deleted []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{events: map[uuid.UUID]*models.Event{}, held: map[uuid.UUID]int{}}
}

func (m *memStore) Create(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.SeatsRemaining = e.Capacity
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, apperr.NotFound("event")
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]models.Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, e := range m.events {
		if f.ClubID != nil && e.ClubID != *f.ClubID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.Category != nil && e.Category != *f.Category {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, len(out), nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, f UpdateFields) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, apperr.NotFound("event")
	}
	if f.Capacity != nil {
		remaining := e.SeatsRemaining + *f.Capacity - e.Capacity
		if remaining < 0 {
			return nil, apperr.Validation("capacity cannot be lower than the %d seats already taken", e.SeatsHeld())
		}
		e.SeatsRemaining = remaining
		e.Capacity = *f.Capacity
	}
	if f.Title != nil {
		e.Title = *f.Title
	}
	if f.Venue != nil {
		e.Venue = *f.Venue
	}
	if f.Status != nil {
		e.Status = *f.Status
	}
	if f.Category != nil {
		e.Category = *f.Category
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return 0, apperr.NotFound("event")
	}
	delete(m.events, id)
	m.deleted = append(m.deleted, id)
	return int64(m.held[id]), nil
}

type memClubs map[uuid.UUID]*models.User

func (m memClubs) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user")
}

type memAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memAudit) Record(_ context.Context, e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memAudit) actions() []models.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditAction
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	svc     *Service
	store   *memStore
	audit   *memAudit
	club    authz.Identity
	other   authz.Identity
	student authz.Identity
	admin   authz.Identity
}

func newFixture() *fixture {
	club := &models.User{ID: uuid.New(), Name: "Asha", Role: models.RoleClubAdmin, ClubName: "Robotics"}
	other := &models.User{ID: uuid.New(), Name: "Ravi", Role: models.RoleClubAdmin, ClubName: "Drama"}
	student := &models.User{ID: uuid.New(), Name: "Meera", Role: models.RoleStudent}
	admin := &models.User{ID: uuid.New(), Name: "Root", Role: models.RoleSuperAdmin}
	clubs := memClubs{club.ID: club, other.ID: other, student.ID: student, admin.ID: admin}

	f := &fixture{store: newMemStore(), audit: &memAudit{}}
	f.svc = NewService(f.store, clubs, f.audit, config.EventDefaults{Capacity: 50, Category: "Technical", Time: "14:30"}, nil)
	f.club = authz.Identity{UserID: club.ID, Role: club.Role}
	f.other = authz.Identity{UserID: other.ID, Role: other.Role}
	f.student = authz.Identity{UserID: student.ID, Role: student.Role}
	f.admin = authz.Identity{UserID: admin.ID, Role: admin.Role}
	return f
}

func baseInput() CreateInput {
	return CreateInput{Title: "Line follower build", Description: "Bring a laptop", Date: "2030-03-14", Venue: "Lab 2"}
}

func intp(n int) *int       { return &n }
func strp(s string) *string { return &s }

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture()
	e, err := f.svc.Create(context.Background(), f.club, baseInput())
	require.NoError(t, err)

	assert.Equal(t, 50, e.Capacity)
	assert.Equal(t, 50, e.SeatsRemaining)
	assert.Equal(t, models.CategoryTechnical, e.Category)
	assert.Equal(t, "14:30", e.Time)
	assert.Equal(t, models.EventStatusPublished, e.Status)
	assert.Equal(t, f.club.UserID, e.ClubID)
	assert.Equal(t, "Robotics", e.ClubName)
	assert.Equal(t, []models.AuditAction{models.AuditEventCreated}, f.audit.actions())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		mod  func(*CreateInput)
	}{
		{"missing title", func(in *CreateInput) { in.Title = "  " }},
		{"missing venue", func(in *CreateInput) { in.Venue = "" }},
		{"bad date", func(in *CreateInput) { in.Date = "14/03/2030" }},
		{"bad time", func(in *CreateInput) { in.Time = "25:00" }},
		{"zero capacity", func(in *CreateInput) { in.Capacity = intp(0) }},
		{"unknown category", func(in *CreateInput) { in.Category = "Gaming" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mod(&in)
			_, err := f.svc.Create(context.Background(), f.club, in)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestCreateRoles(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), f.student, baseInput())
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.svc.Create(context.Background(), f.admin, baseInput())
	assert.True(t, apperr.Is(err, apperr.KindValidation), "super admin must name a club")

	in := baseInput()
	in.ClubID = &f.student.UserID
	_, err = f.svc.Create(context.Background(), f.admin, in)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "club_id must be a club admin")

	in.ClubID = &f.other.UserID
	e, err := f.svc.Create(context.Background(), f.admin, in)
	require.NoError(t, err)
	assert.Equal(t, f.other.UserID, e.ClubID)
}

func TestUpdateOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.club, baseInput())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.other, e.ID, UpdateInput{Title: strp("Hijacked")})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	// Ownership is checked before payload validity.
	_, err = f.svc.Update(ctx, f.other, e.ID, UpdateInput{Capacity: intp(0)})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	got, err := f.svc.Update(ctx, f.club, e.ID, UpdateInput{Title: strp("Line follower v2")})
	require.NoError(t, err)
	assert.Equal(t, "Line follower v2", got.Title)

	_, err = f.svc.Update(ctx, f.club, e.ID, UpdateInput{Title: strp(strings.Repeat("x", MaxTextLen+1))})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err = f.svc.Update(ctx, f.admin, e.ID, UpdateInput{Status: strp("draft")})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusDraft, got.Status)

	// A draft is invisible to other clubs, so they cannot learn it exists.
	_, err = f.svc.Update(ctx, f.other, e.ID, UpdateInput{Title: strp("Hijacked")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(f.svc.Delete(ctx, f.other, e.ID), apperr.KindNotFound))
	_, err = f.svc.Editable(ctx, f.club, e.ID)
	assert.NoError(t, err)

	_, err = f.svc.Update(ctx, f.club, uuid.New(), UpdateInput{Title: strp("x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateCapacityBelowHeldSeats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := baseInput()
	in.Capacity = intp(5)
	e, err := f.svc.Create(ctx, f.club, in)
	require.NoError(t, err)
	f.store.events[e.ID].SeatsRemaining = 2 // three seats held

	_, err = f.svc.Update(ctx, f.club, e.ID, UpdateInput{Capacity: intp(2)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := f.svc.Update(ctx, f.club, e.ID, UpdateInput{Capacity: intp(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Capacity)
	assert.Equal(t, 0, got.SeatsRemaining)
}

func TestDeleteScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.club, baseInput())
	require.NoError(t, err)

	err = f.svc.Delete(ctx, f.other, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	require.NoError(t, f.svc.Delete(ctx, f.club, e.ID))
	_, err = f.svc.Get(ctx, f.club, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Equal(t, []models.AuditAction{models.AuditEventCreated, models.AuditEventDeleted}, f.audit.actions())
}

func TestGetHidesUnpublished(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e, err := f.svc.Create(ctx, f.club, baseInput())
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.club, e.ID, UpdateInput{Status: strp("draft")})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, authz.Identity{}, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.svc.Get(ctx, f.other, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Get(ctx, f.club, e.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.admin, e.ID)
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pub, err := f.svc.Create(ctx, f.club, baseInput())
	require.NoError(t, err)
	draft, err := f.svc.Create(ctx, f.club, baseInput())
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.club, draft.ID, UpdateInput{Status: strp("draft")})
	require.NoError(t, err)

	events, total, err := f.svc.List(ctx, authz.Identity{}, ListInput{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, pub.ID, events[0].ID)

	_, total, err = f.svc.List(ctx, f.club, ListInput{Mine: true, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, _, err = f.svc.List(ctx, authz.Identity{}, ListInput{Mine: true})
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	_, _, err = f.svc.List(ctx, f.student, ListInput{Status: "draft"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, total, err = f.svc.List(ctx, f.admin, ListInput{Status: "draft", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, _, err = f.svc.List(ctx, f.admin, ListInput{Category: "Gaming"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
