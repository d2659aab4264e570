package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/database"
)

// UserColumns is the select list matching ScanUser.
const UserColumns = `id, email, college_id, department, role, status, name, phone, year, password_hash,
	email_verified, COALESCE(otp_hash,''), otp_expires_at, COALESCE(club_name,''), COALESCE(club_description,''),
	last_login_at, created_at, updated_at`

// ScanUser scans a row selected with UserColumns.
func ScanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var dept, role, status string
	err := row.Scan(&u.ID, &u.Email, &u.CollegeID, &dept, &role, &status, &u.Name, &u.Phone, &u.Year, &u.Password,
		&u.EmailVerified, &u.OTPHash, &u.OTPExpiresAt, &u.ClubName, &u.ClubDescription,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Department = models.Department(dept)
	u.Role = models.Role(role)
	u.Status = models.UserStatus(status)
	return &u, nil
}

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := ScanUser(r.pool.QueryRow(ctx, `SELECT `+UserColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail returns a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := ScanUser(r.pool.QueryRow(ctx, `SELECT `+UserColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// CreateUserParams holds the fields of a new account.
type CreateUserParams struct {
	Email           string
	CollegeID       string
	Department      models.Department
	Role            models.Role
	Name            string
	Phone           string
	Year            int
	PasswordHash    string
	EmailVerified   bool
	OTPHash         string
	OTPExpiresAt    *time.Time
	ClubName        string
	ClubDescription string
}

const insertUser = `INSERT INTO users (email, college_id, department, role, name, phone, year, password_hash,
		email_verified, otp_hash, otp_expires_at, club_name, club_description)
	VALUES (LOWER($1), UPPER($2), $3, $4, $5, $6, $7, $8, $9, NULLIF($10,''), $11, NULLIF($12,''), NULLIF($13,''))
	RETURNING ` + UserColumns

// Create inserts a new user. Duplicate email or college id is a Conflict.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	return CreateWith(ctx, r.pool, p)
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateWith inserts a user through q, so bulk imports can share a transaction.
func CreateWith(ctx context.Context, q Querier, p CreateUserParams) (*models.User, error) {
	if p.Year == 0 {
		p.Year = 1
	}
	u, err := ScanUser(q.QueryRow(ctx, insertUser,
		strings.TrimSpace(p.Email), strings.TrimSpace(p.CollegeID), string(p.Department), string(p.Role),
		p.Name, p.Phone, p.Year, p.PasswordHash, p.EmailVerified, p.OTPHash, p.OTPExpiresAt,
		p.ClubName, p.ClubDescription))
	if err != nil {
		if constraint, ok := database.IsUniqueViolation(err); ok {
			if strings.Contains(constraint, "college") {
				return nil, apperr.Conflict("college id already registered")
			}
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SetOTP stores a new OTP hash and expiry.
func (r *Repository) SetOTP(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET otp_hash = $2, otp_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		id, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	return nil
}

// MarkVerified sets email_verified and clears the OTP.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET email_verified = TRUE, otp_hash = NULL, otp_expires_at = NULL,
		updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// TouchLogin records a successful login.
func (r *Repository) TouchLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}
