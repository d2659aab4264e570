package users

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
)

const maxNameLen = 100

var phoneRe = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// ProfileUpdate holds the self-editable fields. Nil fields are left alone.
// Email, college id, department and role are not editable here.
type ProfileUpdate struct {
	Name  *string
	Phone *string
	Year  *int
}

func (p ProfileUpdate) empty() bool {
	return p.Name == nil && p.Phone == nil && p.Year == nil
}

func (p *ProfileUpdate) normalize() error {
	if p.empty() {
		return apperr.Validation("nothing to update")
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" || utf8.RuneCountInString(n) > maxNameLen {
			return apperr.Validation("name must be 1 to %d characters", maxNameLen)
		}
		p.Name = &n
	}
	if p.Phone != nil {
		ph := strings.TrimSpace(*p.Phone)
		if ph != "" && !phoneRe.MatchString(ph) {
			return apperr.Validation("phone must be 10 to 15 digits")
		}
		p.Phone = &ph
	}
	if p.Year != nil && (*p.Year < 1 || *p.Year > 4) {
		return apperr.Validation("year must be between 1 and 4")
	}
	return nil
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, actor authz.Identity) (*models.User, error) {
	if actor.IsZero() {
		return nil, apperr.Unauthenticated("authentication required")
	}
	return s.store.GetByID(ctx, actor.UserID)
}

// UpdateProfile changes the caller's name, phone or year.
func (s *Service) UpdateProfile(ctx context.Context, actor authz.Identity, p ProfileUpdate) (*models.User, error) {
	if actor.IsZero() {
		return nil, apperr.Unauthenticated("authentication required")
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	u, err := s.store.UpdateProfile(ctx, actor.UserID, p)
	if err != nil {
		return nil, err
	}
	var fields []string
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Year != nil {
		fields = append(fields, "year")
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditUserUpdated,
		Actor:       actor,
		TargetType:  models.TargetUser,
		TargetID:    actor.UserID.String(),
		Description: "updated own profile",
		Metadata:    map[string]any{"fields": fields},
	})
	return u, nil
}

// ProfileOf returns any user's account for a super admin.
func (s *Service) ProfileOf(ctx context.Context, actor authz.Identity, id uuid.UUID) (*models.User, error) {
	if err := authz.Require(actor, authz.ManageUsers, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, id)
}
