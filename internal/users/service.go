package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/auth"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/utils"
)

// MaxBulk caps every bulk operation.
const MaxBulk = 100

// Store is the persistence the service needs. *Repository satisfies it.
type Store interface {
	List(ctx context.Context, f Filter) ([]models.User, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error
	SetRoles(ctx context.Context, ids []uuid.UUID, role models.Role) (int64, error)
	SetStatus(ctx context.Context, ids []uuid.UUID, status models.UserStatus) (int64, error)
	OwnedEvents(ctx context.Context, id uuid.UUID) (int, error)
	EventOwners(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*models.User, error)
	Import(ctx context.Context, rows []auth.CreateUserParams) ([]ImportResult, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Service implements super admin user management.
type Service struct {
	store  Store
	audit  Auditor
	logger *zap.Logger
}

// NewService creates a user management service.
func NewService(store Store, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, audit: auditor, logger: logger}
}

// ListInput is a user search.
type ListInput struct {
	Query      string
	Role       string
	Status     string
	Department string
	Limit      int
	Offset     int
}

// List searches users by name, email, college id or department.
func (s *Service) List(ctx context.Context, actor authz.Identity, in ListInput) ([]models.UserPublic, int, error) {
	if err := authz.Require(actor, authz.ManageUsers, authz.Resource{}); err != nil {
		return nil, 0, err
	}
	f := Filter{Query: in.Query, Limit: in.Limit, Offset: in.Offset}
	if in.Role != "" {
		r, ok := models.ParseRole(in.Role)
		if !ok {
			return nil, 0, apperr.Validation("unknown role %q", in.Role)
		}
		f.Role = &r
	}
	if in.Status != "" {
		st, ok := models.ParseUserStatus(in.Status)
		if !ok {
			return nil, 0, apperr.Validation("unknown status %q", in.Status)
		}
		f.Status = &st
	}
	if in.Department != "" {
		if !models.ValidDepartment(in.Department) {
			return nil, 0, apperr.Validation("unknown department %q", in.Department)
		}
		d := models.Department(strings.ToUpper(strings.TrimSpace(in.Department)))
		f.Department = &d
	}
	list, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.UserPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	return out, total, nil
}

// SetRole changes another user's role. A user who owns events must stay a club admin.
func (s *Service) SetRole(ctx context.Context, actor authz.Identity, id uuid.UUID, role string) (*models.User, error) {
	if err := authz.Require(actor, authz.ManageUsers, authz.Resource{}); err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, apperr.Validation("cannot change your own role")
	}
	next, ok := models.ParseRole(role)
	if !ok {
		return nil, apperr.Validation("unknown role %q", role)
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role == next {
		return u, nil
	}
	if u.Role == models.RoleClubAdmin {
		n, err := s.store.OwnedEvents(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, apperr.Conflict(fmt.Sprintf("user owns %d events; delete or reassign them first", n))
		}
	}
	if err := s.store.SetRole(ctx, id, next); err != nil {
		return nil, err
	}
	prev := u.Role
	u.Role = next
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditRoleChanged,
		Actor:       actor,
		TargetType:  models.TargetUser,
		TargetID:    id.String(),
		Description: fmt.Sprintf("%s: %s -> %s", u.Email, prev, next),
		Metadata:    map[string]any{"from": prev, "to": next},
	})
	return u, nil
}

// SetStatus activates, deactivates or suspends another user.
func (s *Service) SetStatus(ctx context.Context, actor authz.Identity, id uuid.UUID, status string) (*models.User, error) {
	if err := authz.Require(actor, authz.ManageUsers, authz.Resource{}); err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, apperr.Validation("cannot change your own status")
	}
	st, ok := models.ParseUserStatus(status)
	if !ok {
		return nil, apperr.Validation("unknown status %q", status)
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.SetStatus(ctx, []uuid.UUID{id}, st); err != nil {
		return nil, err
	}
	prev := u.Status
	u.Status = st
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditUserUpdated,
		Actor:       actor,
		TargetType:  models.TargetUser,
		TargetID:    id.String(),
		Description: fmt.Sprintf("status %s -> %s", prev, st),
		Metadata:    map[string]any{"from": prev, "to": st},
	})
	return u, nil
}

// Delete removes another user. Users who own events are refused with Conflict.
func (s *Service) Delete(ctx context.Context, actor authz.Identity, id uuid.UUID) error {
	if err := authz.Require(actor, authz.ManageUsers, authz.Resource{}); err != nil {
		return err
	}
	if id == actor.UserID {
		return apperr.Validation("cannot delete your own account")
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditUserDeleted,
		Actor:       actor,
		TargetType:  models.TargetUser,
		TargetID:    id.String(),
		Description: "deleted " + u.Email,
		Metadata:    map[string]any{"role": u.Role},
	})
	return nil
}

// bulkTargets checks the size of a bulk request and that the actor is not in it.
func bulkTargets(actor authz.Identity, ids []uuid.UUID, self string) error {
	if err := authz.Require(actor, authz.ManageUsers, authz.Resource{}); err != nil {
		return err
	}
	if len(ids) == 0 || len(ids) > MaxBulk {
		return apperr.Validation("between 1 and %d user ids are required", MaxBulk)
	}
	for _, id := range ids {
		if id == actor.UserID {
			return apperr.Validation("%s", self)
		}
	}
	return nil
}

// owningClubs refuses the batch when any of ids still owns events.
func (s *Service) owningClubs(ctx context.Context, ids []uuid.UUID) error {
	owners, err := s.store.EventOwners(ctx, ids)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return nil
	}
	total := 0
	for _, n := range owners {
		total += n
	}
	return apperr.Conflict(fmt.Sprintf("%d users own %d events; delete or reassign them first", len(owners), total))
}

// BulkStatus sets the status of up to MaxBulk other users.
func (s *Service) BulkStatus(ctx context.Context, actor authz.Identity, ids []uuid.UUID, status string) (int64, error) {
	if err := bulkTargets(actor, ids, "cannot change your own status"); err != nil {
		return 0, err
	}
	st, ok := models.ParseUserStatus(status)
	if !ok {
		return 0, apperr.Validation("unknown status %q", status)
	}
	n, err := s.store.SetStatus(ctx, ids, st)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditBulkOperation,
		Actor:       actor,
		TargetType:  models.TargetSystem,
		Description: fmt.Sprintf("set status %s on %d users", st, n),
		Metadata:    map[string]any{"requested": len(ids), "updated": n, "status": st},
	})
	return n, nil
}

// BulkRole moves up to MaxBulk other users to role. Club admins who own events
// cannot leave the role, and one such user fails the whole batch.
func (s *Service) BulkRole(ctx context.Context, actor authz.Identity, ids []uuid.UUID, role string) (int64, error) {
	if err := bulkTargets(actor, ids, "cannot change your own role"); err != nil {
		return 0, err
	}
	next, ok := models.ParseRole(role)
	if !ok {
		return 0, apperr.Validation("unknown role %q", role)
	}
	if next != models.RoleClubAdmin {
		if err := s.owningClubs(ctx, ids); err != nil {
			return 0, err
		}
	}
	n, err := s.store.SetRoles(ctx, ids, next)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditBulkOperation,
		Actor:       actor,
		TargetType:  models.TargetSystem,
		Description: fmt.Sprintf("set role %s on %d users", next, n),
		Metadata:    map[string]any{"requested": len(ids), "updated": n, "role": next},
	})
	return n, nil
}

// BulkDelete removes up to MaxBulk other users along with their registrations.
func (s *Service) BulkDelete(ctx context.Context, actor authz.Identity, ids []uuid.UUID) (int64, error) {
	if err := bulkTargets(actor, ids, "cannot delete your own account"); err != nil {
		return 0, err
	}
	if err := s.owningClubs(ctx, ids); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditBulkOperation,
		Actor:       actor,
		TargetType:  models.TargetSystem,
		Description: fmt.Sprintf("deleted %d users", n),
		Metadata:    map[string]any{"requested": len(ids), "deleted": n},
	})
	return n, nil
}

// ImportRow is one account in a bulk import.
type ImportRow struct {
	Name       string
	Email      string
	CollegeID  string
	Department string
	Year       int
	Phone      string
	Role       string
	ClubName   string
}

// ImportedUser reports one imported row. TempPassword is only returned here.
type ImportedUser struct {
	Row          int                `json:"row"`
	User         *models.UserPublic `json:"user,omitempty"`
	TempPassword string             `json:"temp_password,omitempty"`
	Error        string             `json:"error,omitempty"`
}

func (r ImportRow) params() (auth.CreateUserParams, error) {
	p := auth.CreateUserParams{
		Name:          strings.TrimSpace(r.Name),
		Email:         strings.TrimSpace(r.Email),
		CollegeID:     strings.TrimSpace(r.CollegeID),
		Phone:         strings.TrimSpace(r.Phone),
		Year:          r.Year,
		Role:          models.RoleStudent,
		EmailVerified: true,
	}
	if p.Name == "" || p.Email == "" || p.CollegeID == "" {
		return p, fmt.Errorf("name, email and college_id are required")
	}
	if !strings.Contains(p.Email, "@") {
		return p, fmt.Errorf("invalid email")
	}
	if !models.ValidDepartment(r.Department) {
		return p, fmt.Errorf("unknown department %q", r.Department)
	}
	p.Department = models.Department(strings.ToUpper(strings.TrimSpace(r.Department)))
	if p.Year == 0 {
		p.Year = 1
	}
	if p.Year < 1 || p.Year > 4 {
		return p, fmt.Errorf("year must be between 1 and 4")
	}
	if r.Role != "" {
		role, ok := models.ParseRole(r.Role)
		if !ok || role == models.RoleSuperAdmin {
			return p, fmt.Errorf("role must be student or club_admin")
		}
		p.Role = role
	}
	if p.Role == models.RoleClubAdmin {
		p.ClubName = strings.TrimSpace(r.ClubName)
		if p.ClubName == "" {
			return p, fmt.Errorf("club_name is required for club admins")
		}
	}
	return p, nil
}

// Import creates up to MaxBulk verified accounts with temporary passwords.
// Invalid or duplicate rows are reported individually.
func (s *Service) Import(ctx context.Context, actor authz.Identity, rows []ImportRow) ([]ImportedUser, error) {
	if err := authz.Require(actor, authz.ManageUsers, authz.Resource{}); err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows) > MaxBulk {
		return nil, apperr.Validation("between 1 and %d rows are required", MaxBulk)
	}

	out := make([]ImportedUser, len(rows))
	var valid []auth.CreateUserParams
	var index []int
	passwords := map[int]string{}
	for i, r := range rows {
		out[i].Row = i + 1
		p, err := r.params()
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		pw, err := utils.GenerateTempPassword(12)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if p.PasswordHash, err = utils.HashPassword(pw); err != nil {
			return nil, apperr.Internal(err)
		}
		passwords[i] = pw
		valid = append(valid, p)
		index = append(index, i)
	}

	created := 0
	if len(valid) > 0 {
		results, err := s.store.Import(ctx, valid)
		if err != nil {
			return nil, err
		}
		for j, res := range results {
			i := index[j]
			if res.Error != nil {
				out[i].Error = apperr.As(res.Error).Message
				continue
			}
			pub := res.User.ToPublic()
			out[i].User = &pub
			out[i].TempPassword = passwords[i]
			created++
		}
	}

	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditBulkOperation,
		Actor:       actor,
		TargetType:  models.TargetSystem,
		Description: fmt.Sprintf("imported %d of %d users", created, len(rows)),
		Metadata:    map[string]any{"requested": len(rows), "created": created},
	})
	return out, nil
}
