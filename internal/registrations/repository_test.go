package registrations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/auth"
	"github.com/campus-events/backend/internal/events"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/database/dbtest"
)

type pgFixture struct {
	pool   *pgxpool.Pool
	users  *auth.Repository
	events *events.Repository
	regs   *Repository
	n      int
}

func newPG(t *testing.T) *pgFixture {
	pool := dbtest.Pool(t)
	return &pgFixture{
		pool:   pool,
		users:  auth.NewRepository(pool),
		events: events.NewRepository(pool),
		regs:   NewRepository(pool),
	}
}

func (f *pgFixture) user(t *testing.T, role models.Role) *models.User {
	t.Helper()
	f.n++
	u, err := f.users.Create(context.Background(), auth.CreateUserParams{
		Email:         fmt.Sprintf("user%d@campus.test", f.n),
		CollegeID:     fmt.Sprintf("CLG-%04d", f.n),
		Department:    models.DeptCSE,
		Role:          role,
		Name:          fmt.Sprintf("User %d", f.n),
		Year:          2,
		PasswordHash:  "x",
		EmailVerified: true,
		ClubName:      "Club",
	})
	require.NoError(t, err)
	return u
}

func (f *pgFixture) event(t *testing.T, club *models.User, capacity int) *models.Event {
	t.Helper()
	e := &models.Event{
		Title:       "Robotics expo",
		Description: "Demo day",
		Date:        time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour),
		Time:        "14:30",
		Venue:       "Main hall",
		Capacity:    capacity,
		ClubID:      club.ID,
		Status:      models.EventStatusPublished,
		Category:    models.CategoryTechnical,
	}
	require.NoError(t, f.events.Create(context.Background(), e))
	return e
}

func (f *pgFixture) seats(t *testing.T, id uuid.UUID) int {
	t.Helper()
	e, err := f.events.GetByID(context.Background(), id)
	require.NoError(t, err)
	return e.SeatsRemaining
}

func (f *pgFixture) active(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status IN ('pending','confirmed')`, id).Scan(&n))
	return n
}

func TestRepositoryConcurrentLastSeats(t *testing.T) {
	f := newPG(t)
	club := f.user(t, models.RoleClubAdmin)
	e := f.event(t, club, 5)

	const racers = 100
	students := make([]*models.User, racers)
	for i := range students {
		students[i] = f.user(t, models.RoleStudent)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := map[apperr.Kind]int{}
	created := 0
	start := make(chan struct{})
	for _, s := range students {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.regs.Create(context.Background(), e.ID, userID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
				return
			}
			results[apperr.KindOf(err)]++
		}(s.ID)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 5, created)
	assert.Equal(t, racers-5, results[apperr.KindCapacity])
	assert.Equal(t, 0, f.seats(t, e.ID))
	assert.Equal(t, 5, f.active(t, e.ID))
}

func TestRepositoryUniqueness(t *testing.T) {
	f := newPG(t)
	club := f.user(t, models.RoleClubAdmin)
	student := f.user(t, models.RoleStudent)
	e := f.event(t, club, 3)
	ctx := context.Background()

	reg, err := f.regs.Create(ctx, e.ID, student.ID)
	require.NoError(t, err)

	_, err = f.regs.Create(ctx, e.ID, student.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Equal(t, 2, f.seats(t, e.ID), "rolled back seat")

	_, err = f.regs.SetStatus(ctx, reg.ID, models.RegistrationPending, models.RegistrationCancelled)
	require.NoError(t, err)
	assert.Equal(t, 3, f.seats(t, e.ID))

	revived, err := f.regs.Create(ctx, e.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, revived.ID)
	assert.Equal(t, models.RegistrationPending, revived.Status)
	assert.Equal(t, 2, f.seats(t, e.ID))
}

func TestRepositorySeatAccountingAcrossTransitions(t *testing.T) {
	f := newPG(t)
	club := f.user(t, models.RoleClubAdmin)
	e := f.event(t, club, 1)
	ctx := context.Background()
	a := f.user(t, models.RoleStudent)
	b := f.user(t, models.RoleStudent)

	reg, err := f.regs.Create(ctx, e.ID, a.ID)
	require.NoError(t, err)
	_, err = f.regs.SetStatus(ctx, reg.ID, models.RegistrationPending, models.RegistrationConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 0, f.seats(t, e.ID))

	_, err = f.regs.SetStatus(ctx, reg.ID, models.RegistrationConfirmed, models.RegistrationRejected)
	require.NoError(t, err)
	assert.Equal(t, 1, f.seats(t, e.ID))

	_, err = f.regs.Create(ctx, e.ID, b.ID)
	require.NoError(t, err)

	_, err = f.regs.SetStatus(ctx, reg.ID, models.RegistrationRejected, models.RegistrationPending)
	assert.True(t, apperr.Is(err, apperr.KindCapacity), "got %v", err)
	got, err := f.regs.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRejected, got.Status, "failed reopen leaves the row untouched")

	_, err = f.regs.SetStatus(ctx, reg.ID, models.RegistrationPending, models.RegistrationConfirmed)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "stale from-status")

	assert.LessOrEqual(t, f.active(t, e.ID), 1)
}

func TestRepositoryCapacityUpdateAndCascadeDelete(t *testing.T) {
	f := newPG(t)
	club := f.user(t, models.RoleClubAdmin)
	e := f.event(t, club, 4)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.regs.Create(ctx, e.ID, f.user(t, models.RoleStudent).ID)
		require.NoError(t, err)
	}

	two := 2
	_, err := f.events.Update(ctx, e.ID, events.UpdateFields{Capacity: &two})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	ten := 10
	updated, err := f.events.Update(ctx, e.ID, events.UpdateFields{Capacity: &ten})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.SeatsRemaining)

	rows, err := f.regs.ListForEvent(ctx, e.ID, RosterFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	removed, err := f.events.Delete(ctx, e.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	var left int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, e.ID).Scan(&left))
	assert.Zero(t, left)

	_, err = f.events.GetByID(ctx, e.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
