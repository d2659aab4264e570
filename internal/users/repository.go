package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/auth"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/database"
)

// Repository handles the super admin's view of user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user management repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Filter narrows List.
type Filter struct {
	Query      string
	Role       *models.Role
	Status     *models.UserStatus
	Department *models.Department
	Limit      int
	Offset     int
}

// List returns users matching f, newest first, with the total count.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.User, int, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg(q)
		where = append(where, fmt.Sprintf(
			"(name ILIKE '%%' || %[1]s || '%%' OR email ILIKE '%%' || %[1]s || '%%' OR college_id ILIKE '%%' || %[1]s || '%%' OR department ILIKE %[1]s)", p))
	}
	if f.Role != nil {
		where = append(where, "role = "+arg(string(*f.Role)))
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(string(*f.Status)))
	}
	if f.Department != nil {
		where = append(where, "department = "+arg(string(*f.Department)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	q := `SELECT ` + auth.UserColumns + ` FROM users` + cond +
		` ORDER BY created_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		u, err := auth.ScanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := auth.ScanUser(r.pool.QueryRow(ctx, `SELECT `+auth.UserColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetRole changes a user's role.
func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// SetRoles changes the role of the given users, returning how many changed.
func (r *Repository) SetRoles(ctx context.Context, ids []uuid.UUID, role models.Role) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = ANY($1) AND role <> $2`, ids, string(role))
	if err != nil {
		return 0, fmt.Errorf("set roles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetStatus changes account status for the given users, returning how many changed.
func (r *Repository) SetStatus(ctx context.Context, ids []uuid.UUID, status models.UserStatus) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, string(status))
	if err != nil {
		return 0, fmt.Errorf("set status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// OwnedEvents counts the events a user owns as a club.
func (r *Repository) OwnedEvents(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE club_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count owned events: %w", err)
	}
	return n, nil
}

// EventOwners returns how many events each of ids owns, omitting users who own none.
func (r *Repository) EventOwners(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT club_id, COUNT(*) FROM events WHERE club_id = ANY($1) GROUP BY club_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("count owned events: %w", err)
	}
	defer rows.Close()
	out := map[uuid.UUID]int{}
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// DeleteMany removes users and their registrations in one transaction.
// If any of them owns events nothing is deleted.
func (r *Repository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var owned int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE club_id = ANY($1)`, ids).Scan(&owned); err != nil {
		return 0, fmt.Errorf("count owned events: %w", err)
	}
	if owned > 0 {
		return 0, apperr.Conflict(fmt.Sprintf("selected users own %d events; delete or reassign them first", owned))
	}
	if _, err := tx.Exec(ctx, `
		UPDATE events e SET seats_remaining = LEAST(e.seats_remaining + held.n, e.capacity), updated_at = NOW()
		FROM (SELECT event_id, COUNT(*) AS n FROM registrations
			WHERE user_id = ANY($1) AND status IN ('pending','confirmed') GROUP BY event_id) held
		WHERE e.id = held.event_id`, ids); err != nil {
		return 0, fmt.Errorf("release seats: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM registrations WHERE user_id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("delete registrations: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateProfile applies the non-nil fields of p to a user.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*models.User, error) {
	u, err := auth.ScanUser(r.pool.QueryRow(ctx, `UPDATE users SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			year = COALESCE($4, year),
			updated_at = NOW()
		WHERE id = $1 RETURNING `+auth.UserColumns, id, p.Name, p.Phone, p.Year))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// Delete removes a user and their registrations. Users who own events cannot be deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var owned int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE club_id = $1`, id).Scan(&owned); err != nil {
		return fmt.Errorf("count owned events: %w", err)
	}
	if owned > 0 {
		return apperr.Conflict(fmt.Sprintf("user owns %d events; delete or reassign them first", owned))
	}
	// Free the seats held by the user's live registrations before removing them.
	if _, err := tx.Exec(ctx, `
		UPDATE events e SET seats_remaining = LEAST(e.seats_remaining + held.n, e.capacity), updated_at = NOW()
		FROM (SELECT event_id, COUNT(*) AS n FROM registrations
			WHERE user_id = $1 AND status IN ('pending','confirmed') GROUP BY event_id) held
		WHERE e.id = held.event_id`, id); err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM registrations WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete registrations: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return tx.Commit(ctx)
}

// ImportResult is the outcome of one row of a bulk import.
type ImportResult struct {
	Row   int
	User  *models.User
	Error error
}

// Import creates users in one transaction, each row under its own savepoint so a
// bad row does not abort the rest.
func (r *Repository) Import(ctx context.Context, rows []auth.CreateUserParams) ([]ImportResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	results := make([]ImportResult, 0, len(rows))
	for i, p := range rows {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("savepoint: %w", err)
		}
		u, err := auth.CreateWith(ctx, sp, p)
		if err != nil {
			_ = sp.Rollback(ctx)
			results = append(results, ImportResult{Row: i + 1, Error: err})
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("release savepoint: %w", err)
		}
		results = append(results, ImportResult{Row: i + 1, User: u})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return results, nil
}

// UpdateClub sets a club admin's club name and description.
func (r *Repository) UpdateClub(ctx context.Context, id uuid.UUID, name, description string) (*models.User, error) {
	u, err := auth.ScanUser(r.pool.QueryRow(ctx, `UPDATE users SET club_name = $2, club_description = NULLIF($3,''), updated_at = NOW()
		WHERE id = $1 AND role = 'club_admin' RETURNING `+auth.UserColumns, id, name, description))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("club")
		}
		return nil, fmt.Errorf("update club: %w", err)
	}
	return u, nil
}

// Each streams every user, oldest first, for report export.
func (r *Repository) Each(ctx context.Context, fn func(models.User) error) error {
	rows, err := r.pool.Query(ctx, `SELECT `+auth.UserColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return fmt.Errorf("iterate users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := auth.ScanUser(rows)
		if err != nil {
			return err
		}
		if err := fn(*u); err != nil {
			return err
		}
	}
	return rows.Err()
}
