package users

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/auth"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/utils"
)

type memStore struct {
	users  map[uuid.UUID]*models.User
	owned  map[uuid.UUID]int
	emails map[string]bool
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*models.User{}, owned: map[uuid.UUID]int{}, emails: map[string]bool{}}
}

func (m *memStore) add(role models.Role) *models.User {
	u := &models.User{ID: uuid.New(), Role: role, Status: models.UserStatusActive, Email: uuid.NewString() + "@campus.test"}
	m.users[u.ID] = u
	m.emails[u.Email] = true
	return u
}

func (m *memStore) List(_ context.Context, f Filter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) SetRole(_ context.Context, id uuid.UUID, role models.Role) error {
	m.users[id].Role = role
	return nil
}

func (m *memStore) SetRoles(_ context.Context, ids []uuid.UUID, role models.Role) (int64, error) {
	var n int64
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.Role != role {
			u.Role = role
			n++
		}
	}
	return n, nil
}

func (m *memStore) EventOwners(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := map[uuid.UUID]int{}
	for _, id := range ids {
		if m.owned[id] > 0 {
			out[id] = m.owned[id]
		}
	}
	return out, nil
}

func (m *memStore) DeleteMany(_ context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.users[id]; ok {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id uuid.UUID, p ProfileUpdate) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Year != nil {
		u.Year = *p.Year
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) SetStatus(_ context.Context, ids []uuid.UUID, status models.UserStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			u.Status = status
			n++
		}
	}
	return n, nil
}

func (m *memStore) OwnedEvents(_ context.Context, id uuid.UUID) (int, error) { return m.owned[id], nil }

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	if m.owned[id] > 0 {
		return apperr.Conflict("user owns events")
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) Import(_ context.Context, rows []auth.CreateUserParams) ([]ImportResult, error) {
	var out []ImportResult
	for i, p := range rows {
		key := strings.ToLower(p.Email)
		if m.emails[key] {
			out = append(out, ImportResult{Row: i + 1, Error: apperr.Conflict("email already registered")})
			continue
		}
		m.emails[key] = true
		u := &models.User{ID: uuid.New(), Email: key, Name: p.Name, Role: p.Role, Password: p.PasswordHash, EmailVerified: p.EmailVerified}
		m.users[u.ID] = u
		out = append(out, ImportResult{Row: i + 1, User: u})
	}
	return out, nil
}

type memAudit struct{ entries []audit.Entry }

func (m *memAudit) Record(_ context.Context, e audit.Entry) { m.entries = append(m.entries, e) }

func setup() (*Service, *memStore, *memAudit, authz.Identity) {
	store := newMemStore()
	a := &memAudit{}
	admin := store.add(models.RoleSuperAdmin)
	return NewService(store, a, nil), store, a, authz.Identity{UserID: admin.ID, Role: admin.Role}
}

func TestOnlySuperAdminManagesUsers(t *testing.T) {
	svc, store, _, _ := setup()
	club := store.add(models.RoleClubAdmin)
	_, _, err := svc.List(context.Background(), authz.Identity{UserID: club.ID, Role: club.Role}, ListInput{})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestSetRole(t *testing.T) {
	svc, store, a, admin := setup()
	ctx := context.Background()
	student := store.add(models.RoleStudent)

	_, err := svc.SetRole(ctx, admin, admin.UserID, "student")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "cannot change own role")

	u, err := svc.SetRole(ctx, admin, student.ID, "club_admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleClubAdmin, u.Role)
	require.Len(t, a.entries, 1)
	assert.Equal(t, models.AuditRoleChanged, a.entries[0].Action)

	store.owned[student.ID] = 2
	_, err = svc.SetRole(ctx, admin, student.ID, "student")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.SetRole(ctx, admin, student.ID, "janitor")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDelete(t *testing.T) {
	svc, store, a, admin := setup()
	ctx := context.Background()
	club := store.add(models.RoleClubAdmin)
	store.owned[club.ID] = 1
	student := store.add(models.RoleStudent)

	assert.True(t, apperr.Is(svc.Delete(ctx, admin, admin.UserID), apperr.KindValidation))
	assert.True(t, apperr.Is(svc.Delete(ctx, admin, club.ID), apperr.KindConflict))
	require.NoError(t, svc.Delete(ctx, admin, student.ID))
	assert.True(t, apperr.Is(svc.Delete(ctx, admin, student.ID), apperr.KindNotFound))

	require.Len(t, a.entries, 1)
	assert.Equal(t, models.AuditUserDeleted, a.entries[0].Action)
}

func TestBulkStatus(t *testing.T) {
	svc, store, a, admin := setup()
	ctx := context.Background()
	ids := []uuid.UUID{store.add(models.RoleStudent).ID, store.add(models.RoleStudent).ID}

	n, err := svc.BulkStatus(ctx, admin, ids, "suspended")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, models.UserStatusSuspended, store.users[ids[0]].Status)
	assert.Equal(t, models.AuditBulkOperation, a.entries[0].Action)

	_, err = svc.BulkStatus(ctx, admin, append(ids, admin.UserID), "inactive")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.BulkStatus(ctx, admin, make([]uuid.UUID, MaxBulk+1), "inactive")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestImport(t *testing.T) {
	svc, store, a, admin := setup()
	ctx := context.Background()
	existing := store.add(models.RoleStudent)

	results, err := svc.Import(ctx, admin, []ImportRow{
		{Name: "Kiran", Email: "kiran@campus.test", CollegeID: "CLG-1001", Department: "cse", Year: 2},
		{Name: "Dup", Email: existing.Email, CollegeID: "CLG-1002", Department: "IT"},
		{Name: "Bad", Email: "bad@campus.test", CollegeID: "CLG-1003", Department: "ARTS"},
		{Name: "Root", Email: "root@campus.test", CollegeID: "CLG-1004", Department: "IT", Role: "super_admin"},
		{Name: "Club", Email: "club@campus.test", CollegeID: "CLG-1005", Department: "ECE", Role: "club_admin", ClubName: "Photography"},
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.NotNil(t, results[0].User)
	assert.Len(t, results[0].TempPassword, 12)
	created := store.users[results[0].User.ID]
	assert.True(t, utils.CheckPassword(results[0].TempPassword, created.Password))
	assert.True(t, created.EmailVerified)

	assert.Equal(t, "email already registered", results[1].Error)
	assert.Contains(t, results[2].Error, "department")
	assert.Contains(t, results[3].Error, "role")
	assert.Equal(t, models.RoleClubAdmin, results[4].User.Role)

	for _, r := range results[1:4] {
		assert.Nil(t, r.User)
		assert.Empty(t, r.TempPassword)
	}
	require.Len(t, a.entries, 1)
	assert.Equal(t, "imported 2 of 5 users", a.entries[0].Description)
}

func TestBulkRole(t *testing.T) {
	svc, store, a, admin := setup()
	ctx := context.Background()
	s1, s2 := store.add(models.RoleStudent), store.add(models.RoleStudent)

	n, err := svc.BulkRole(ctx, admin, []uuid.UUID{s1.ID, s2.ID}, "club_admin")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, models.RoleClubAdmin, store.users[s2.ID].Role)
	require.Len(t, a.entries, 1)
	assert.Equal(t, models.AuditBulkOperation, a.entries[0].Action)
	assert.Equal(t, "set role club_admin on 2 users", a.entries[0].Description)

	// One event owner fails the whole demotion.
	store.owned[s1.ID] = 3
	_, err = svc.BulkRole(ctx, admin, []uuid.UUID{s1.ID, s2.ID}, "student")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, models.RoleClubAdmin, store.users[s2.ID].Role)

	_, err = svc.BulkRole(ctx, admin, []uuid.UUID{s2.ID, admin.UserID}, "student")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.BulkRole(ctx, admin, []uuid.UUID{s2.ID}, "janitor")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.BulkRole(ctx, admin, make([]uuid.UUID, MaxBulk+1), "student")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	club := authz.Identity{UserID: s1.ID, Role: models.RoleClubAdmin}
	_, err = svc.BulkRole(ctx, club, []uuid.UUID{s2.ID}, "student")
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Len(t, a.entries, 1)
}

func TestBulkDelete(t *testing.T) {
	svc, store, a, admin := setup()
	ctx := context.Background()
	s1, s2 := store.add(models.RoleStudent), store.add(models.RoleStudent)
	club := store.add(models.RoleClubAdmin)
	store.owned[club.ID] = 1

	_, err := svc.BulkDelete(ctx, admin, []uuid.UUID{s1.ID, club.ID})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, store.users, s1.ID)

	_, err = svc.BulkDelete(ctx, admin, []uuid.UUID{s1.ID, admin.UserID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "cannot delete your own account", apperr.As(err).Message)
	_, err = svc.BulkDelete(ctx, admin, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	n, err := svc.BulkDelete(ctx, admin, []uuid.UUID{s1.ID, s2.ID, uuid.New()})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NotContains(t, store.users, s1.ID)
	require.Len(t, a.entries, 1)
	assert.Equal(t, models.AuditBulkOperation, a.entries[0].Action)
	assert.Equal(t, 3, a.entries[0].Metadata["requested"])
}

func TestUpdateProfile(t *testing.T) {
	svc, store, a, _ := setup()
	ctx := context.Background()
	student := store.add(models.RoleStudent)
	student.Name, student.Year = "Asha", 1
	me := authz.Identity{UserID: student.ID, Role: student.Role}
	str := func(s string) *string { return &s }
	year := func(y int) *int { return &y }

	u, err := svc.UpdateProfile(ctx, me, ProfileUpdate{Name: str("  Asha Rao "), Year: year(3)})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", u.Name)
	assert.Equal(t, 3, u.Year)
	assert.Equal(t, student.Email, u.Email)
	require.Len(t, a.entries, 1)
	assert.Equal(t, models.AuditUserUpdated, a.entries[0].Action)
	assert.Equal(t, []string{"name", "year"}, a.entries[0].Metadata["fields"])

	for name, p := range map[string]ProfileUpdate{
		"empty":      {},
		"blank name": {Name: str("   ")},
		"long name":  {Name: str(strings.Repeat("a", 101))},
		"bad phone":  {Phone: str("12ab")},
		"bad year":   {Year: year(5)},
	} {
		_, err := svc.UpdateProfile(ctx, me, p)
		assert.True(t, apperr.Is(err, apperr.KindValidation), name)
	}

	u, err = svc.UpdateProfile(ctx, me, ProfileUpdate{Phone: str("")})
	require.NoError(t, err)
	assert.Empty(t, u.Phone)

	_, err = svc.UpdateProfile(ctx, authz.Identity{}, ProfileUpdate{Year: year(2)})
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	got, err := svc.Profile(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.Name)
}

func TestProfileOfIsAdminOnly(t *testing.T) {
	svc, store, _, admin := setup()
	ctx := context.Background()
	student := store.add(models.RoleStudent)
	other := store.add(models.RoleStudent)

	u, err := svc.ProfileOf(ctx, admin, student.ID)
	require.NoError(t, err)
	assert.Equal(t, student.Email, u.Email)

	_, err = svc.ProfileOf(ctx, authz.Identity{UserID: other.ID, Role: other.Role}, student.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	_, err = svc.ProfileOf(ctx, admin, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
