package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/queue"
)

type fakeStore struct {
	totals     Totals
	events     EventStats
	activity   Activity
	since      time.Time
	saved      []*models.AnalyticsSnapshot
	listLimit  int
	created    func(from, to time.Time) Created
	signals    RiskSignals
	publishing Publishing
}

func (f *fakeStore) Created(_ context.Context, from, to time.Time) (Created, error) {
	if f.created == nil {
		return Created{}, nil
	}
	return f.created(from, to), nil
}

func (f *fakeStore) RiskSignals(_ context.Context, since time.Time) (RiskSignals, error) {
	f.since = since
	return f.signals, nil
}

func (f *fakeStore) Publishing(_ context.Context, since time.Time) (Publishing, error) {
	f.since = since
	return f.publishing, nil
}

func (f *fakeStore) Totals(_ context.Context, since time.Time) (Totals, error) {
	f.since = since
	return f.totals, nil
}

func (f *fakeStore) UserStats(context.Context, time.Time) (UserStats, error) {
	return UserStats{Total: f.totals.Users, ByRole: map[models.Role]int{models.RoleStudent: f.totals.Users}}, nil
}

func (f *fakeStore) EventStats(context.Context) (EventStats, error) { return f.events, nil }

func (f *fakeStore) Activity(context.Context, time.Time, time.Time) (Activity, error) {
	return f.activity, nil
}

func (f *fakeStore) SaveSnapshot(_ context.Context, s *models.AnalyticsSnapshot) error {
	s.ID = uuid.New()
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeStore) ListSnapshots(_ context.Context, limit int) ([]models.AnalyticsSnapshot, error) {
	f.listLimit = limit
	return nil, nil
}

type fakeClubs []models.ClubStats

func (f fakeClubs) Stats(context.Context) ([]models.ClubStats, error) { return f, nil }

type fakeQueue struct {
	got queue.SnapshotPayload
	err error
}

func (q *fakeQueue) EnqueueSnapshot(_ context.Context, p queue.SnapshotPayload) (string, error) {
	q.got = p
	return "job-1", q.err
}

type memAudit struct{ entries []audit.Entry }

func (m *memAudit) Record(_ context.Context, e audit.Entry) { m.entries = append(m.entries, e) }

var (
	admin   = authz.Identity{UserID: uuid.New(), Role: models.RoleSuperAdmin}
	student = authz.Identity{UserID: uuid.New(), Role: models.RoleStudent}
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   Health
	}{
		{"no events", Totals{}, HealthNormal},
		{"mostly published", Totals{Events: 10, Published: 8, Drafts: 2}, HealthNormal},
		{"draft backlog", Totals{Events: 40, Published: 28, Drafts: 11}, HealthWarning},
		{"exactly ten drafts", Totals{Events: 30, Published: 20, Drafts: 10}, HealthNormal},
		{"half published", Totals{Events: 4, Published: 2, Drafts: 2}, HealthNormal},
		{"under half published", Totals{Events: 5, Published: 2, Drafts: 3}, HealthCritical},
		{"critical beats warning", Totals{Events: 30, Published: 5, Drafts: 25}, HealthCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.totals.Health())
		})
	}
}

func TestImpactOf(t *testing.T) {
	tests := []struct {
		name  string
		stats models.ClubStats
		want  Impact
	}{
		{"high", models.ClubStats{Club: models.Club{PublishedEvents: 9}, TotalEvents: 10, AvgRegistrations: 25}, ImpactHigh},
		{"busy but drafty", models.ClubStats{Club: models.Club{PublishedEvents: 7}, TotalEvents: 10, AvgRegistrations: 25}, ImpactModerate},
		{"moderate", models.ClubStats{Club: models.Club{PublishedEvents: 7}, TotalEvents: 10, AvgRegistrations: 12}, ImpactModerate},
		{"boundary avg", models.ClubStats{Club: models.Club{PublishedEvents: 10}, TotalEvents: 10, AvgRegistrations: 20}, ImpactModerate},
		{"low", models.ClubStats{Club: models.Club{PublishedEvents: 3}, TotalEvents: 10, AvgRegistrations: 30}, ImpactLow},
		{"no events", models.ClubStats{}, ImpactLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ImpactOf(tt.stats)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestService(store *fakeStore, clubs fakeClubs, q *fakeQueue) (*Service, *memAudit, time.Time) {
	a := &memAudit{}
	svc := NewService(store, clubs, q, a, nil)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, a, now
}

func TestPulseAuditsAndRequiresSuperAdmin(t *testing.T) {
	store := &fakeStore{totals: Totals{Users: 50, Events: 4, Published: 3, Drafts: 1}}
	svc, a, now := newTestService(store, nil, &fakeQueue{})
	ctx := context.Background()

	_, err := svc.Pulse(ctx, student)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Empty(t, a.entries)

	p, err := svc.Pulse(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, HealthNormal, p.Health)
	assert.InDelta(t, 0.75, p.PublishedRatio, 1e-9)
	assert.Equal(t, now.Add(-7*24*time.Hour), store.since)
	require.Len(t, a.entries, 1)
	assert.Equal(t, models.AuditReportDownloaded, a.entries[0].Action)
}

func TestEventsDerivesRates(t *testing.T) {
	store := &fakeStore{events: EventStats{Total: 4, Registrations: 30, Capacity: 200, SeatsTaken: 50}}
	svc, _, _ := newTestService(store, nil, &fakeQueue{})

	s, err := svc.Events(context.Background(), admin)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, s.AvgRegistrations, 1e-9)
	assert.InDelta(t, 0.25, s.FillRate, 1e-9)
}

func TestClubsGradesEveryClub(t *testing.T) {
	clubs := fakeClubs{
		{Club: models.Club{Name: "Robotics", PublishedEvents: 5}, TotalEvents: 5, AvgRegistrations: 40},
		{Club: models.Club{Name: "Chess"}, TotalEvents: 0},
	}
	svc, _, _ := newTestService(&fakeStore{}, clubs, &fakeQueue{})
	list, err := svc.Clubs(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ImpactHigh, list[0].Impact)
	assert.Equal(t, ImpactLow, list[1].Impact)
}

func TestRequestSnapshot(t *testing.T) {
	q := &fakeQueue{}
	svc, _, now := newTestService(&fakeStore{}, nil, q)
	ctx := context.Background()

	_, err := svc.RequestSnapshot(ctx, admin, "yearly")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	id, err := svc.RequestSnapshot(ctx, admin, "weekly")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, "WEEKLY", q.got.SnapshotType)
	assert.Equal(t, admin.UserID, q.got.RequestedBy)
	assert.Equal(t, now, q.got.RequestedAt)

	q.err = errors.New("redis down")
	_, err = svc.RequestSnapshot(ctx, admin, "DAILY")
	assert.Error(t, err)
}

func TestBuildSnapshot(t *testing.T) {
	store := &fakeStore{
		totals:   Totals{Users: 10, Events: 2, Published: 2},
		events:   EventStats{Total: 2, Registrations: 6, Capacity: 12, SeatsTaken: 6},
		activity: Activity{NewRegistrations: 6},
	}
	svc, a, _ := newTestService(store, nil, &fakeQueue{})
	end := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	snap, err := svc.BuildSnapshot(context.Background(), models.SnapshotMonthly, admin.UserID, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), snap.PeriodStart)
	assert.Equal(t, end, snap.PeriodEnd)
	require.NotNil(t, snap.GeneratedBy)

	var data SnapshotData
	require.NoError(t, json.Unmarshal(snap.Data, &data))
	assert.Equal(t, 10, data.Pulse.Users)
	assert.InDelta(t, 0.5, data.Events.FillRate, 1e-9)
	assert.Equal(t, 6, data.Activity.NewRegistrations)

	require.Len(t, store.saved, 1)
	require.Len(t, a.entries, 1)
	assert.Equal(t, models.AuditSnapshotGenerated, a.entries[0].Action)
	assert.Equal(t, snap.ID.String(), a.entries[0].TargetID)
}

func TestSnapshotsHistoryLimit(t *testing.T) {
	store := &fakeStore{}
	svc, _, _ := newTestService(store, nil, &fakeQueue{})
	list, err := svc.Snapshots(context.Background(), admin)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Equal(t, SnapshotHistory, store.listLimit)
}

func TestSummaryRows(t *testing.T) {
	store := &fakeStore{
		totals: Totals{Users: 3, Events: 1, Published: 1},
		events: EventStats{Total: 1, ByCategory: map[models.EventCategory]int{models.CategorySports: 1}},
	}
	svc, _, _ := newTestService(store, nil, &fakeQueue{})
	rows, err := svc.SummaryRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, rows[0])
	assert.Contains(t, rows, []string{"Total Users", "3"})
	assert.Contains(t, rows, []string{"Health", "NORMAL"})
	assert.Contains(t, rows, []string{"Events: Sports", "1"})
}
