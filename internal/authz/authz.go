// Package authz decides whether an identity may perform an action.
//
// Decisions are pure: they read only the identity and the resource owner passed in.
// Denials distinguish a wrong role from a non-owner for logging, but callers
// always surface a single "not authorized" error to clients.
package authz

import (
	"context"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/models"
	"github.com/google/uuid"
)

// Identity is the authenticated caller. It is immutable once attached to a request.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// IsZero reports whether no caller is authenticated.
func (i Identity) IsZero() bool { return i.UserID == uuid.Nil }

// Action is a class of operation subject to authorization.
type Action int

const (
	CreateEvent Action = iota + 1
	MutateEvent
	Register
	ManageRegistration
	CancelRegistration
	ManageUsers
	ViewAnalytics
	ManageOwnClub
)

func (a Action) String() string {
	switch a {
	case CreateEvent:
		return "create-event"
	case MutateEvent:
		return "mutate-event"
	case Register:
		return "register"
	case ManageRegistration:
		return "manage-registration"
	case CancelRegistration:
		return "cancel-registration"
	case ManageUsers:
		return "manage-users"
	case ViewAnalytics:
		return "view-analytics"
	case ManageOwnClub:
		return "manage-own-club"
	}
	return "unknown"
}

// Reason explains a denial. It is logged, never returned to clients.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonWrongRole Reason = "wrong role"
	ReasonNotOwner  Reason = "not owner"
)

// Decision is the outcome of Decide.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var (
	allow     = Decision{Allowed: true}
	wrongRole = Decision{Reason: ReasonWrongRole}
	notOwner  = Decision{Reason: ReasonNotOwner}
)

// Resource names the owner of the target of an action. For event actions the
// owner is the event's club; for CancelRegistration it is the registering student.
type Resource struct {
	OwnerID uuid.UUID
}

// Owned returns a Resource owned by id.
func Owned(id uuid.UUID) Resource { return Resource{OwnerID: id} }

type grant int

const (
	deny grant = iota
	always
	ownerOnly
)

// grantFor is the role table. super_admin overrides every ownership check but
// cannot register for events, which is a student-only action.
func grantFor(role models.Role, action Action) grant {
	switch role {
	case models.RoleSuperAdmin:
		switch action {
		case Register:
			return deny
		case CreateEvent, MutateEvent, ManageRegistration, CancelRegistration, ManageUsers, ViewAnalytics, ManageOwnClub:
			return always
		}
	case models.RoleClubAdmin:
		switch action {
		case CreateEvent, ManageOwnClub:
			return always
		case MutateEvent, ManageRegistration:
			return ownerOnly
		case Register, CancelRegistration, ManageUsers, ViewAnalytics:
			return deny
		}
	case models.RoleStudent:
		switch action {
		case Register:
			return always
		case CancelRegistration:
			return ownerOnly
		case CreateEvent, MutateEvent, ManageRegistration, ManageUsers, ViewAnalytics, ManageOwnClub:
			return deny
		}
	}
	return deny
}

// Decide returns whether id may perform action on res.
func Decide(id Identity, action Action, res Resource) Decision {
	switch grantFor(id.Role, action) {
	case always:
		return allow
	case ownerOnly:
		if res.OwnerID == uuid.Nil || res.OwnerID != id.UserID {
			return notOwner
		}
		return allow
	case deny:
		return wrongRole
	}
	return wrongRole
}

// RoleMay reports whether id's role can perform action on at least its own resources.
// It is the role-only prefilter applied before the target is loaded.
func RoleMay(id Identity, action Action) bool {
	return grantFor(id.Role, action) != deny
}

// Require converts a denial into an apperr authorization error.
func Require(id Identity, action Action, res Resource) error {
	d := Decide(id, action, res)
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden(action.String() + ": " + string(d.Reason))
}

// SeesEvent reports whether id may know that e exists. Unpublished events are
// limited to their club and super admins; everyone else is told they are not found.
func SeesEvent(id Identity, e *models.Event) bool {
	if e.Status == models.EventStatusPublished {
		return true
	}
	return !id.IsZero() && Decide(id, MutateEvent, Owned(e.ClubID)).Allowed
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached to ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && !id.IsZero()
}
