package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/queue"
)

// SnapshotHistory is how many snapshots the history endpoint returns.
const SnapshotHistory = 30

const (
	activeWindow  = 7 * 24 * time.Hour
	recentWindow  = 30 * 24 * time.Hour
	draftsWarning = 10
)

// Health summarises the publishing state of the platform.
type Health string

const (
	HealthNormal   Health = "NORMAL"
	HealthWarning  Health = "WARNING"
	HealthCritical Health = "CRITICAL"
)

// Impact grades a club by engagement.
type Impact string

const (
	ImpactHigh     Impact = "HIGH"
	ImpactModerate Impact = "MODERATE"
	ImpactLow      Impact = "LOW"
)

// Totals are platform-wide counters.
type Totals struct {
	Users         int `json:"total_users"`
	Clubs         int `json:"total_clubs"`
	Events        int `json:"total_events"`
	Published     int `json:"published_events"`
	Drafts        int `json:"draft_events"`
	Registrations int `json:"total_registrations"`
	WeeklyActive  int `json:"weekly_active_users"`
}

// PublishedRatio is published over all events, 0 when there are none.
func (t Totals) PublishedRatio() float64 {
	if t.Events == 0 {
		return 0
	}
	return float64(t.Published) / float64(t.Events)
}

// Health grades the totals. A low published ratio outranks a draft backlog.
func (t Totals) Health() Health {
	switch {
	case t.Events > 0 && t.PublishedRatio() < 0.5:
		return HealthCritical
	case t.Drafts > draftsWarning:
		return HealthWarning
	}
	return HealthNormal
}

// Pulse is the dashboard headline.
type Pulse struct {
	Totals
	PublishedRatio float64   `json:"published_ratio"`
	Health         Health    `json:"health"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// UserStats is the user distribution.
type UserStats struct {
	Total        int                       `json:"total_users"`
	ByRole       map[models.Role]int       `json:"by_role"`
	ByDepartment map[models.Department]int `json:"by_department"`
	NewUsers     int                       `json:"new_users_30d"`
	Inactive     int                       `json:"inactive_users_30d"`
}

// EventStats is the event distribution with seat usage.
type EventStats struct {
	Total            int                          `json:"total_events"`
	ByCategory       map[models.EventCategory]int `json:"by_category"`
	ByStatus         map[models.EventStatus]int   `json:"by_status"`
	Registrations    int                          `json:"total_registrations"`
	AvgRegistrations float64                      `json:"avg_registrations"`
	Capacity         int                          `json:"total_capacity"`
	SeatsTaken       int                          `json:"seats_taken"`
	FillRate         float64                      `json:"fill_rate"`
}

func (s *EventStats) derive() {
	if s.Total > 0 {
		s.AvgRegistrations = float64(s.Registrations) / float64(s.Total)
	}
	if s.Capacity > 0 {
		s.FillRate = float64(s.SeatsTaken) / float64(s.Capacity)
	}
}

// ClubImpact is one row of the club dashboard.
type ClubImpact struct {
	models.ClubStats
	PublishedRatio float64 `json:"published_ratio"`
	Impact         Impact  `json:"impact"`
}

// ImpactOf grades a club by average registrations and published share.
func ImpactOf(s models.ClubStats) (Impact, float64) {
	ratio := 0.0
	if s.TotalEvents > 0 {
		ratio = float64(s.PublishedEvents) / float64(s.TotalEvents)
	}
	switch {
	case s.AvgRegistrations > 20 && ratio > 0.8:
		return ImpactHigh, ratio
	case s.AvgRegistrations > 10 && ratio > 0.6:
		return ImpactModerate, ratio
	}
	return ImpactLow, ratio
}

// Activity counts what happened inside a snapshot period.
type Activity struct {
	NewUsers         int `json:"new_users"`
	NewEvents        int `json:"new_events"`
	NewRegistrations int `json:"new_registrations"`
	Cancellations    int `json:"cancellations"`
}

// SnapshotData is the JSON stored in analytics_snapshots.data.
type SnapshotData struct {
	Pulse    Pulse      `json:"pulse"`
	Users    UserStats  `json:"users"`
	Events   EventStats `json:"events"`
	Activity Activity   `json:"activity"`
}

// Store is the aggregate read side. *Repository satisfies it.
type Store interface {
	Totals(ctx context.Context, activeSince time.Time) (Totals, error)
	UserStats(ctx context.Context, since time.Time) (UserStats, error)
	EventStats(ctx context.Context) (EventStats, error)
	Activity(ctx context.Context, from, to time.Time) (Activity, error)
	Created(ctx context.Context, from, to time.Time) (Created, error)
	RiskSignals(ctx context.Context, since time.Time) (RiskSignals, error)
	Publishing(ctx context.Context, since time.Time) (Publishing, error)
	SaveSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error
	ListSnapshots(ctx context.Context, limit int) ([]models.AnalyticsSnapshot, error)
}

// ClubSource supplies per-club totals. *clubs.Repository satisfies it.
type ClubSource interface {
	Stats(ctx context.Context) ([]models.ClubStats, error)
}

// Enqueuer hands snapshot work to the worker. *queue.Queue satisfies it.
type Enqueuer interface {
	EnqueueSnapshot(ctx context.Context, payload queue.SnapshotPayload) (string, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Service computes super-admin dashboards.
type Service struct {
	store  Store
	clubs  ClubSource
	jobs   Enqueuer
	audit  Auditor
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an analytics service.
func NewService(store Store, clubs ClubSource, jobs Enqueuer, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, clubs: clubs, jobs: jobs, audit: auditor, logger: logger, now: time.Now}
}

func (s *Service) pulse(ctx context.Context) (Pulse, error) {
	now := s.now().UTC()
	t, err := s.store.Totals(ctx, now.Add(-activeWindow))
	if err != nil {
		return Pulse{}, err
	}
	return Pulse{Totals: t, PublishedRatio: t.PublishedRatio(), Health: t.Health(), GeneratedAt: now}, nil
}

// Pulse returns headline totals and health.
func (s *Service) Pulse(ctx context.Context, actor authz.Identity) (Pulse, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return Pulse{}, err
	}
	p, err := s.pulse(ctx)
	if err != nil {
		return Pulse{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditReportDownloaded,
		Actor:       actor,
		TargetType:  models.TargetReport,
		TargetID:    "pulse",
		Description: "viewed platform pulse",
		Metadata:    map[string]any{"health": string(p.Health)},
	})
	return p, nil
}

// Users returns the user distribution.
func (s *Service) Users(ctx context.Context, actor authz.Identity) (UserStats, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return UserStats{}, err
	}
	return s.store.UserStats(ctx, s.now().UTC().Add(-recentWindow))
}

// Events returns the event distribution.
func (s *Service) Events(ctx context.Context, actor authz.Identity) (EventStats, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return EventStats{}, err
	}
	st, err := s.store.EventStats(ctx)
	if err != nil {
		return EventStats{}, err
	}
	st.derive()
	return st, nil
}

// Clubs grades every club.
func (s *Service) Clubs(ctx context.Context, actor authz.Identity) ([]ClubImpact, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return nil, err
	}
	stats, err := s.clubs.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ClubImpact, 0, len(stats))
	for _, st := range stats {
		impact, ratio := ImpactOf(st)
		out = append(out, ClubImpact{ClubStats: st, PublishedRatio: ratio, Impact: impact})
	}
	return out, nil
}

// RequestSnapshot queues snapshot generation and returns the job id.
func (s *Service) RequestSnapshot(ctx context.Context, actor authz.Identity, kind string) (string, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return "", err
	}
	typ, ok := models.ParseSnapshotType(kind)
	if !ok {
		return "", apperr.Validation("type must be DAILY, WEEKLY or MONTHLY")
	}
	id, err := s.jobs.EnqueueSnapshot(ctx, queue.SnapshotPayload{
		SnapshotType: string(typ),
		RequestedBy:  actor.UserID,
		RequestedAt:  s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("enqueue snapshot: %w", err)
	}
	s.logger.Info("snapshot requested", zap.String("job_id", id), zap.String("type", string(typ)))
	return id, nil
}

// Snapshots returns the most recent snapshots.
func (s *Service) Snapshots(ctx context.Context, actor authz.Identity) ([]models.AnalyticsSnapshot, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return nil, err
	}
	list, err := s.store.ListSnapshots(ctx, SnapshotHistory)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.AnalyticsSnapshot{}
	}
	return list, nil
}

// BuildSnapshot computes and stores a snapshot for the period ending at end.
// It runs inside the worker, which has already been trusted with the job.
func (s *Service) BuildSnapshot(ctx context.Context, typ models.SnapshotType, requestedBy uuid.UUID, end time.Time) (*models.AnalyticsSnapshot, error) {
	from, to := typ.Period(end.UTC())
	p, err := s.pulse(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.store.UserStats(ctx, to.Add(-recentWindow))
	if err != nil {
		return nil, err
	}
	events, err := s.store.EventStats(ctx)
	if err != nil {
		return nil, err
	}
	events.derive()
	act, err := s.store.Activity(ctx, from, to)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(SnapshotData{Pulse: p, Users: users, Events: events, Activity: act})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	snap := &models.AnalyticsSnapshot{Type: typ, PeriodStart: from, PeriodEnd: to, Data: data}
	if requestedBy != uuid.Nil {
		snap.GeneratedBy = &requestedBy
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditSnapshotGenerated,
		Actor:       authz.Identity{UserID: requestedBy, Role: models.RoleSuperAdmin},
		TargetType:  models.TargetSystem,
		TargetID:    snap.ID.String(),
		Description: fmt.Sprintf("generated %s snapshot", typ),
		Metadata:    map[string]any{"period_start": from, "period_end": to},
	})
	return snap, nil
}

// SummaryRows renders the pulse and distributions as metric/value rows for the summary report.
func (s *Service) SummaryRows(ctx context.Context) ([][]string, error) {
	p, err := s.pulse(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := s.store.EventStats(ctx)
	if err != nil {
		return nil, err
	}
	ev.derive()
	itoa := strconv.Itoa
	pct := func(f float64) string { return strconv.FormatFloat(f*100, 'f', 1, 64) + "%" }
	rows := [][]string{
		{"Metric", "Value"},
		{"Total Users", itoa(p.Users)},
		{"Total Clubs", itoa(p.Clubs)},
		{"Total Events", itoa(p.Events)},
		{"Published Events", itoa(p.Published)},
		{"Draft Events", itoa(p.Drafts)},
		{"Total Registrations", itoa(p.Registrations)},
		{"Weekly Active Users", itoa(p.WeeklyActive)},
		{"Published Ratio", pct(p.PublishedRatio)},
		{"Health", string(p.Health)},
		{"Avg Registrations per Event", strconv.FormatFloat(ev.AvgRegistrations, 'f', 2, 64)},
		{"Fill Rate", pct(ev.FillRate)},
	}
	for _, c := range models.Categories {
		rows = append(rows, []string{"Events: " + string(c), itoa(ev.ByCategory[c])})
	}
	rows = append(rows, []string{"Generated At", p.GeneratedAt.Format(time.RFC3339)})
	return rows, nil
}
