package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/utils"
)

// UserStore is the persistence the auth service needs. *Repository satisfies it.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, p CreateUserParams) (*models.User, error)
	SetOTP(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	TouchLogin(ctx context.Context, id uuid.UUID) error
}

// Mailer sends verification codes.
type Mailer interface {
	SendOTP(ctx context.Context, u *models.User, code string, minutes int)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Service implements sign-up, email verification and login.
type Service struct {
	users      UserStore
	jwt        *JWTService
	mailer     Mailer
	audit      Auditor
	otpMinutes int
	otpDigits  int
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an auth service.
func NewService(users UserStore, jwt *JWTService, mailer Mailer, auditor Auditor, otpMinutes, otpDigits int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users: users, jwt: jwt, mailer: mailer, audit: auditor,
		otpMinutes: otpMinutes, otpDigits: otpDigits, logger: logger, now: time.Now,
	}
}

// RegisterInput is a validated sign-up request.
type RegisterInput struct {
	Name            string
	Email           string
	CollegeID       string
	Department      string
	Phone           string
	Year            int
	Password        string
	Role            string
	ClubName        string
	ClubDescription string
}

// Register creates an unverified account and emails a verification code.
// super_admin cannot be self-assigned; club_admin requires a club name.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role := models.RoleStudent
	if in.Role != "" {
		r, ok := models.ParseRole(in.Role)
		if !ok {
			return nil, apperr.Validation("invalid role")
		}
		role = r
	}
	switch role {
	case models.RoleSuperAdmin:
		return nil, apperr.Validation("role cannot be self-assigned")
	case models.RoleClubAdmin:
		if strings.TrimSpace(in.ClubName) == "" {
			return nil, apperr.Validation("club_name is required for club admins")
		}
	case models.RoleStudent:
		in.ClubName, in.ClubDescription = "", ""
	}
	if in.Year < 1 || in.Year > 4 {
		return nil, apperr.Validation("year must be between 1 and 4")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	code, otpHash, expires, err := s.newOTP()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u, err := s.users.Create(ctx, CreateUserParams{
		Email:           in.Email,
		CollegeID:       in.CollegeID,
		Department:      models.Department(strings.ToUpper(in.Department)),
		Role:            role,
		Name:            strings.TrimSpace(in.Name),
		Phone:           in.Phone,
		Year:            in.Year,
		PasswordHash:    hash,
		OTPHash:         otpHash,
		OTPExpiresAt:    &expires,
		ClubName:        strings.TrimSpace(in.ClubName),
		ClubDescription: strings.TrimSpace(in.ClubDescription),
	})
	if err != nil {
		return nil, err
	}
	s.mailer.SendOTP(ctx, u, code, s.otpMinutes)
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditUserCreated,
		Actor:       authz.Identity{UserID: u.ID, Role: u.Role},
		TargetType:  models.TargetUser,
		TargetID:    u.ID.String(),
		Description: "self registration as " + string(u.Role),
	})
	return u, nil
}

func (s *Service) newOTP() (code, hash string, expires time.Time, err error) {
	code, err = utils.GenerateOTP(s.otpDigits)
	if err != nil {
		return "", "", time.Time{}, err
	}
	hash, err = utils.HashPassword(code)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return code, hash, s.now().Add(time.Duration(s.otpMinutes) * time.Minute), nil
}

// Session is a signed token plus the user it belongs to.
type Session struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, err := s.jwt.Generate(u.ID, string(u.Role))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{Token: token, User: u.ToPublic()}, nil
}

// VerifyOTP checks a verification code and signs the user in.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Validation("invalid or expired code")
		}
		return nil, err
	}
	if u.EmailVerified {
		return nil, apperr.Validation("email already verified")
	}
	if u.OTPHash == "" || u.OTPExpiresAt == nil || s.now().After(*u.OTPExpiresAt) || !utils.CheckPassword(code, u.OTPHash) {
		return nil, apperr.Validation("invalid or expired code")
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return nil, err
	}
	u.EmailVerified = true
	return s.session(u)
}

// ResendOTP issues a fresh code for an unverified account. Unknown emails succeed silently.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if u.EmailVerified {
		return apperr.Validation("email already verified")
	}
	code, hash, expires, err := s.newOTP()
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.users.SetOTP(ctx, u.ID, hash, expires); err != nil {
		return err
	}
	s.mailer.SendOTP(ctx, u, code, s.otpMinutes)
	return nil
}

// Login checks credentials and returns a session for an active, verified user.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated("invalid email or password")
		}
		return nil, err
	}
	if !utils.CheckPassword(password, u.Password) {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if u.Status != models.UserStatusActive {
		return nil, apperr.Unauthenticated("account is " + string(u.Status))
	}
	if !u.EmailVerified {
		return nil, apperr.Unauthenticated("email not verified")
	}
	if err := s.users.TouchLogin(ctx, u.ID); err != nil {
		s.logger.Warn("record last login failed", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditLogin,
		Actor:       authz.Identity{UserID: u.ID, Role: u.Role},
		TargetType:  models.TargetUser,
		TargetID:    u.ID.String(),
		Description: "login",
	})
	return s.session(u)
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, id authz.Identity) (*models.User, error) {
	return s.users.GetByID(ctx, id.UserID)
}
