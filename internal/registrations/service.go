package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/metrics"
	"github.com/campus-events/backend/internal/models"
)

// Store is the registration persistence the service needs. *Repository satisfies it.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	Find(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
	Create(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to models.RegistrationStatus) (*models.Registration, error)
	SetAttended(ctx context.Context, id uuid.UUID, attended bool) (*models.Registration, error)
	ListForEvent(ctx context.Context, eventID uuid.UUID, f RosterFilter) ([]models.RegistrationRow, error)
	Stats(ctx context.Context, eventID uuid.UUID) (models.RegistrationStats, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MyRegistration, error)
}

// EventReader loads the parent event. *events.Repository satisfies it.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// UserReader loads the registering student for notifications.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier is told about registrations placed and decided.
type Notifier interface {
	RegistrationReceived(ctx context.Context, u *models.User, e *models.Event, r *models.Registration)
	StatusChanged(ctx context.Context, u *models.User, e *models.Event, r *models.Registration)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Service implements the registration state machine.
type Service struct {
	store  Store
	events EventReader
	users  UserReader
	notify Notifier
	audit  Auditor
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a registration service.
func NewService(store Store, events EventReader, users UserReader, notify Notifier, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, users: users, notify: notify, audit: auditor, logger: logger, now: time.Now}
}

func outcome(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		return metrics.OutcomeConflict
	case apperr.KindCapacity:
		return metrics.OutcomeCapacity
	}
	return metrics.OutcomeError
}

// Register places a pending registration for the calling student.
func (s *Service) Register(ctx context.Context, actor authz.Identity, eventID uuid.UUID) (*models.Registration, error) {
	reg, err := s.register(ctx, actor, eventID)
	if err != nil {
		if k := apperr.KindOf(err); k == apperr.KindConflict || k == apperr.KindCapacity || k == apperr.KindInternal {
			metrics.RegistrationAttempts.WithLabelValues(outcome(err)).Inc()
		}
		return nil, err
	}
	metrics.RegistrationAttempts.WithLabelValues(metrics.OutcomeCreated).Inc()
	return reg, nil
}

func (s *Service) register(ctx context.Context, actor authz.Identity, eventID uuid.UUID) (*models.Registration, error) {
	if err := authz.Require(actor, authz.Register, authz.Resource{}); err != nil {
		return nil, err
	}
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case models.EventStatusPublished:
	case models.EventStatusCancelled:
		return nil, apperr.Validation("registration closed")
	default:
		return nil, apperr.NotFound("event")
	}
	today := s.now().Truncate(24 * time.Hour)
	if e.Date.Before(today) {
		return nil, apperr.Validation("registration closed")
	}

	// A caller who already holds a registration hears Conflict, not Full.
	existing, err := s.store.Find(ctx, eventID, actor.UserID)
	switch {
	case err == nil && existing.Status != models.RegistrationCancelled:
		return nil, apperr.AlreadyRegistered()
	case err != nil && !apperr.Is(err, apperr.KindNotFound):
		return nil, err
	}

	reg, err := s.store.Create(ctx, eventID, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration created",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.String("registration_id", reg.ID.String()),
	)
	if u, err := s.users.GetByID(ctx, actor.UserID); err == nil {
		s.notify.RegistrationReceived(ctx, u, e, reg)
	} else {
		s.logger.Warn("load registrant for notification", zap.Error(err))
	}
	return reg, nil
}

// loadForEvent returns a registration and its event, checking that the
// registration belongs to eventID. An event hidden from actor is reported as not
// found unless actor holds the registration.
func (s *Service) loadForEvent(ctx context.Context, actor authz.Identity, eventID, regID uuid.UUID) (*models.Event, *models.Registration, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	reg, err := s.store.GetByID(ctx, regID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, nil, err
	}
	found := err == nil && reg.EventID == e.ID
	if !authz.SeesEvent(actor, e) && !(found && reg.UserID == actor.UserID) {
		return nil, nil, apperr.NotFound("event")
	}
	if !found {
		return nil, nil, apperr.NotFound("registration")
	}
	return e, reg, nil
}

// Manageable loads a registration the caller may decide on or mark attended.
func (s *Service) Manageable(ctx context.Context, actor authz.Identity, eventID, regID uuid.UUID) (*models.Event, *models.Registration, error) {
	e, reg, err := s.loadForEvent(ctx, actor, eventID, regID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Require(actor, authz.ManageRegistration, authz.Owned(e.ClubID)); err != nil {
		return nil, nil, err
	}
	return e, reg, nil
}

// UpdateStatusInput is an admin decision on a registration.
type UpdateStatusInput struct {
	Status string
	Reopen bool
}

// UpdateStatus applies an admin decision. Leaving confirmed or rejected needs
// Reopen; moving back into a seat-holding status may fail with Full.
func (s *Service) UpdateStatus(ctx context.Context, actor authz.Identity, eventID, regID uuid.UUID, in UpdateStatusInput) (*models.Registration, error) {
	e, reg, err := s.Manageable(ctx, actor, eventID, regID)
	if err != nil {
		return nil, err
	}
	next, ok := models.ParseAdminStatus(in.Status)
	if !ok {
		return nil, apperr.Validation("status must be pending, confirmed or rejected")
	}
	if reg.Status == next {
		return reg, nil
	}
	if !reg.Status.CanTransition(next, in.Reopen) {
		if reg.Status.Decided() && !in.Reopen {
			return nil, apperr.Conflict("registration is already " + string(reg.Status) + "; set reopen to change it")
		}
		return nil, apperr.Conflict("cannot move a " + string(reg.Status) + " registration to " + string(next))
	}

	prev := reg.Status
	updated, err := s.store.SetStatus(ctx, reg.ID, prev, next)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditRegistrationStatusChanged,
		Actor:       actor,
		TargetType:  models.TargetRegistration,
		TargetID:    reg.ID.String(),
		Description: string(prev) + " -> " + string(next),
		Metadata:    map[string]any{"event_id": e.ID, "from": prev, "to": next, "reopen": in.Reopen},
	})
	if u, err := s.users.GetByID(ctx, updated.UserID); err == nil {
		s.notify.StatusChanged(ctx, u, e, updated)
	}
	return updated, nil
}

// Cancel withdraws a registration and frees its seat. Cancelling an already
// cancelled registration succeeds without change.
func (s *Service) Cancel(ctx context.Context, actor authz.Identity, eventID, regID uuid.UUID) (*models.Registration, error) {
	_, reg, err := s.loadForEvent(ctx, actor, eventID, regID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.CancelRegistration, authz.Owned(reg.UserID)); err != nil {
		return nil, err
	}
	if reg.Status == models.RegistrationCancelled {
		return reg, nil
	}
	updated, err := s.store.SetStatus(ctx, reg.ID, reg.Status, models.RegistrationCancelled)
	if err != nil {
		return nil, err
	}
	if actor.UserID != reg.UserID {
		s.audit.Record(ctx, audit.Entry{
			Action:      models.AuditRegistrationStatusChanged,
			Actor:       actor,
			TargetType:  models.TargetRegistration,
			TargetID:    reg.ID.String(),
			Description: string(reg.Status) + " -> cancelled",
			Metadata:    map[string]any{"event_id": eventID},
		})
	}
	return updated, nil
}

// MarkAttended records attendance for a confirmed registration.
func (s *Service) MarkAttended(ctx context.Context, actor authz.Identity, eventID, regID uuid.UUID, attended bool) (*models.Registration, error) {
	_, reg, err := s.Manageable(ctx, actor, eventID, regID)
	if err != nil {
		return nil, err
	}
	return s.store.SetAttended(ctx, reg.ID, attended)
}

// Roster is an event's registrations with counts.
type Roster struct {
	EventID        uuid.UUID                `json:"event_id"`
	Capacity       int                      `json:"capacity"`
	SeatsRemaining int                      `json:"seats_remaining"`
	Stats          models.RegistrationStats `json:"stats"`
	Registrations  []models.RegistrationRow `json:"registrations"`
}

// ListForEvent returns the roster of an event owned by the caller.
func (s *Service) ListForEvent(ctx context.Context, actor authz.Identity, eventID uuid.UUID, status, query string) (*Roster, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !authz.SeesEvent(actor, e) {
		return nil, apperr.NotFound("event")
	}
	if err := authz.Require(actor, authz.ManageRegistration, authz.Owned(e.ClubID)); err != nil {
		return nil, err
	}
	f := RosterFilter{Query: query}
	if status != "" {
		st := models.RegistrationStatus(status)
		if _, ok := models.ParseAdminStatus(status); !ok && st != models.RegistrationCancelled {
			return nil, apperr.Validation("unknown status %q", status)
		}
		f.Status = &st
	}
	rows, err := s.store.ListForEvent(ctx, eventID, f)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.RegistrationRow{}
	}
	return &Roster{
		EventID:        e.ID,
		Capacity:       e.Capacity,
		SeatsRemaining: e.SeatsRemaining,
		Stats:          stats,
		Registrations:  rows,
	}, nil
}

// Mine returns the caller's registrations.
func (s *Service) Mine(ctx context.Context, actor authz.Identity) ([]models.MyRegistration, error) {
	if actor.IsZero() {
		return nil, apperr.Unauthenticated("authentication required")
	}
	list, err := s.store.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.MyRegistration{}
	}
	return list, nil
}
