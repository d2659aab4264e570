package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/config"
	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/internal/validation"
)

// DateLayout is the wire format of event dates.
const DateLayout = "2006-01-02"

// MaxTextLen bounds event titles and venues.
const MaxTextLen = 200

// Store is the event persistence the service needs. *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f ListFilter) ([]models.Event, int, error)
	Update(ctx context.Context, id uuid.UUID, f UpdateFields) (*models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// ClubLookup resolves the owning club when a super admin creates an event.
type ClubLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Service implements the event lifecycle.
type Service struct {
	store    Store
	clubs    ClubLookup
	audit    Auditor
	defaults config.EventDefaults
	logger   *zap.Logger
}

// NewService creates an event service.
func NewService(store Store, clubs ClubLookup, auditor Auditor, defaults config.EventDefaults, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, clubs: clubs, audit: auditor, defaults: defaults, logger: logger}
}

// CreateInput is a create request. Zero values take the configured defaults.
type CreateInput struct {
	Title       string
	Description string
	Date        string
	Time        string
	Venue       string
	Capacity    *int
	Category    string
	PosterURL   string
	ClubID      *uuid.UUID
}

// Create validates in and persists a published event owned by the caller's club.
func (s *Service) Create(ctx context.Context, actor authz.Identity, in CreateInput) (*models.Event, error) {
	if err := authz.Require(actor, authz.CreateEvent, authz.Resource{}); err != nil {
		return nil, err
	}

	e := &models.Event{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Venue:       strings.TrimSpace(in.Venue),
		PosterURL:   strings.TrimSpace(in.PosterURL),
		Status:      models.EventStatusPublished,
	}
	if e.Title == "" || e.Description == "" || e.Venue == "" || strings.TrimSpace(in.Date) == "" {
		return nil, apperr.Validation("title, description, date and venue are required")
	}
	if len(e.Title) > MaxTextLen || len(e.Venue) > MaxTextLen {
		return nil, apperr.Validation("title and venue are limited to %d characters", MaxTextLen)
	}
	date, err := time.Parse(DateLayout, strings.TrimSpace(in.Date))
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	e.Date = date

	e.Time = s.defaults.Time
	if t := strings.TrimSpace(in.Time); t != "" {
		if !validation.ValidTime(t) {
			return nil, apperr.Validation("time must be HH:MM")
		}
		e.Time = t
	}

	e.Capacity = s.defaults.Capacity
	if in.Capacity != nil {
		if *in.Capacity < 1 {
			return nil, apperr.Validation("capacity must be at least 1")
		}
		e.Capacity = *in.Capacity
	}

	e.Category = models.EventCategory(s.defaults.Category)
	if in.Category != "" {
		c, ok := models.ParseCategory(in.Category)
		if !ok {
			return nil, apperr.Validation("unknown category %q", in.Category)
		}
		e.Category = c
	}

	owner, err := s.owner(ctx, actor, in.ClubID)
	if err != nil {
		return nil, err
	}
	e.ClubID = owner.ID
	e.ClubName = owner.ClubName
	if e.ClubName == "" {
		e.ClubName = owner.Name
	}

	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditEventCreated,
		Actor:       actor,
		TargetType:  models.TargetEvent,
		TargetID:    e.ID.String(),
		Description: "created event " + e.Title,
		Metadata:    map[string]any{"capacity": e.Capacity, "club_id": e.ClubID},
	})
	return e, nil
}

// owner returns the club that will own a new event. Club admins own what they
// create; a super admin must name a club admin.
func (s *Service) owner(ctx context.Context, actor authz.Identity, clubID *uuid.UUID) (*models.User, error) {
	if actor.Role == models.RoleClubAdmin {
		return s.clubs.GetByID(ctx, actor.UserID)
	}
	if clubID == nil {
		return nil, apperr.Validation("club_id is required")
	}
	u, err := s.clubs.GetByID(ctx, *clubID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Validation("club_id does not name a club")
		}
		return nil, err
	}
	if u.Role != models.RoleClubAdmin {
		return nil, apperr.Validation("club_id does not name a club")
	}
	return u, nil
}

// Get returns an event. Events the caller may not see are reported as not found.
func (s *Service) Get(ctx context.Context, actor authz.Identity, id uuid.UUID) (*models.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.SeesEvent(actor, e) {
		return nil, apperr.NotFound("event")
	}
	return e, nil
}

// Editable loads an event the caller may update or delete. Events hidden from
// the caller are reported as not found before ownership is checked.
func (s *Service) Editable(ctx context.Context, actor authz.Identity, id uuid.UUID) (*models.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.SeesEvent(actor, e) {
		return nil, apperr.NotFound("event")
	}
	if err := authz.Require(actor, authz.MutateEvent, authz.Owned(e.ClubID)); err != nil {
		return nil, err
	}
	return e, nil
}

// ListInput selects a page of events.
type ListInput struct {
	Mine     bool
	Status   string
	Category string
	Query    string
	Upcoming bool
	Limit    int
	Offset   int
}

// List returns published events, or with Mine a club's own events in any status.
// Only super admins may filter by a status other than published.
func (s *Service) List(ctx context.Context, actor authz.Identity, in ListInput) ([]models.Event, int, error) {
	f := ListFilter{Query: in.Query, Upcoming: in.Upcoming, Limit: in.Limit, Offset: in.Offset}
	published := models.EventStatusPublished

	if in.Category != "" {
		c, ok := models.ParseCategory(in.Category)
		if !ok {
			return nil, 0, apperr.Validation("unknown category %q", in.Category)
		}
		f.Category = &c
	}

	var status *models.EventStatus
	if in.Status != "" {
		st, ok := models.ParseEventStatus(in.Status)
		if !ok {
			return nil, 0, apperr.Validation("unknown status %q", in.Status)
		}
		status = &st
	}

	switch {
	case in.Mine:
		if actor.IsZero() {
			return nil, 0, apperr.Unauthenticated("authentication required")
		}
		if err := authz.Require(actor, authz.CreateEvent, authz.Resource{}); err != nil {
			return nil, 0, err
		}
		id := actor.UserID
		f.ClubID = &id
		f.Status = status
	case actor.Role == models.RoleSuperAdmin:
		f.Status = status
	default:
		if status != nil && *status != published {
			return nil, 0, apperr.Forbidden("status filter: " + string(authz.ReasonWrongRole))
		}
		f.Status = &published
	}
	return s.store.List(ctx, f)
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Date        *string
	Time        *string
	Venue       *string
	Capacity    *int
	Status      *string
	Category    *string
	PosterURL   *string
}

func (in UpdateInput) fields() (UpdateFields, error) {
	var f UpdateFields
	for _, p := range []struct {
		name string
		src  *string
		dst  **string
		max  int
	}{
		{"title", in.Title, &f.Title, MaxTextLen},
		{"description", in.Description, &f.Description, 0},
		{"venue", in.Venue, &f.Venue, MaxTextLen},
	} {
		if p.src == nil {
			continue
		}
		v := strings.TrimSpace(*p.src)
		if v == "" {
			return f, apperr.Validation("%s cannot be empty", p.name)
		}
		if p.max > 0 && len(v) > p.max {
			return f, apperr.Validation("%s is limited to %d characters", p.name, p.max)
		}
		*p.dst = &v
	}
	if in.PosterURL != nil {
		v := strings.TrimSpace(*in.PosterURL)
		f.PosterURL = &v
	}
	if in.Date != nil {
		d, err := time.Parse(DateLayout, strings.TrimSpace(*in.Date))
		if err != nil {
			return f, apperr.Validation("date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	if in.Time != nil {
		t := strings.TrimSpace(*in.Time)
		if !validation.ValidTime(t) {
			return f, apperr.Validation("time must be HH:MM")
		}
		f.Time = &t
	}
	if in.Capacity != nil {
		if *in.Capacity < 1 {
			return f, apperr.Validation("capacity must be at least 1")
		}
		f.Capacity = in.Capacity
	}
	if in.Status != nil {
		st, ok := models.ParseEventStatus(*in.Status)
		if !ok {
			return f, apperr.Validation("unknown status %q", *in.Status)
		}
		f.Status = &st
	}
	if in.Category != nil {
		c, ok := models.ParseCategory(*in.Category)
		if !ok {
			return f, apperr.Validation("unknown category %q", *in.Category)
		}
		f.Category = &c
	}
	return f, nil
}

// Update applies a partial update to an event owned by the caller.
func (s *Service) Update(ctx context.Context, actor authz.Identity, id uuid.UUID, in UpdateInput) (*models.Event, error) {
	current, err := s.Editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	f, err := in.fields()
	if err != nil {
		return nil, err
	}
	e, err := s.store.Update(ctx, id, f)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditEventUpdated,
		Actor:       actor,
		TargetType:  models.TargetEvent,
		TargetID:    e.ID.String(),
		Description: "updated event " + e.Title,
		Metadata:    changedFields(current, e),
	})
	return e, nil
}

func changedFields(before, after *models.Event) map[string]any {
	m := map[string]any{}
	if before.Title != after.Title {
		m["title"] = after.Title
	}
	if !before.Date.Equal(after.Date) {
		m["date"] = after.Date.Format(DateLayout)
	}
	if before.Time != after.Time {
		m["time"] = after.Time
	}
	if before.Venue != after.Venue {
		m["venue"] = after.Venue
	}
	if before.Capacity != after.Capacity {
		m["capacity"] = []int{before.Capacity, after.Capacity}
	}
	if before.Status != after.Status {
		m["status"] = []models.EventStatus{before.Status, after.Status}
	}
	if before.Category != after.Category {
		m["category"] = after.Category
	}
	return m
}

// Delete removes an event owned by the caller together with its registrations.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id uuid.UUID) error {
	e, err := s.Editable(ctx, actor, id)
	if err != nil {
		return err
	}
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("event deleted",
		zap.String("event_id", id.String()),
		zap.Int64("registrations_removed", removed),
	)
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditEventDeleted,
		Actor:       actor,
		TargetType:  models.TargetEvent,
		TargetID:    id.String(),
		Description: "deleted event " + e.Title,
		Metadata:    map[string]any{"registrations_removed": removed},
	})
	return nil
}
