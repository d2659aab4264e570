package registrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/database"
)

// Repository handles registration persistence. Seat accounting lives here:
// events.seats_remaining is only ever changed inside the same transaction as the
// registration row whose status moves into or out of a seat-holding state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registration repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const regColumns = `id, event_id, user_id, status, attended, registered_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var r models.Registration
	var status string
	if err := row.Scan(&r.ID, &r.EventID, &r.UserID, &status, &r.Attended, &r.RegisteredAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RegistrationStatus(status)
	return &r, nil
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+regColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("registration")
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// Find returns the registration for (eventID, userID), if any.
func (r *Repository) Find(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("registration")
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

func takeSeat(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	tag, err := tx.Exec(ctx,
		`UPDATE events SET seats_remaining = seats_remaining - 1, updated_at = NOW()
		 WHERE id = $1 AND seats_remaining > 0`, eventID)
	if err != nil {
		return fmt.Errorf("take seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Full()
	}
	return nil
}

func releaseSeat(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE events SET seats_remaining = LEAST(seats_remaining + 1, capacity), updated_at = NOW()
		 WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// Create takes a seat and inserts a pending registration in one transaction.
// A cancelled registration for the same pair is revived; any other existing row
// fails with AlreadyRegistered and the seat is given back by the rollback.
func (r *Repository) Create(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := takeSeat(ctx, tx, eventID); err != nil {
		return nil, err
	}
	reg, err := scanRegistration(tx.QueryRow(ctx, `
		INSERT INTO registrations (event_id, user_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT ON CONSTRAINT registrations_event_user_key DO UPDATE
			SET status = 'pending', attended = FALSE, registered_at = NOW(), updated_at = NOW()
			WHERE registrations.status = 'cancelled'
		RETURNING `+regColumns, eventID, userID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.AlreadyRegistered()
		}
		if _, ok := database.IsUniqueViolation(err); ok {
			return nil, apperr.AlreadyRegistered()
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return reg, nil
}

// SetStatus moves a registration from `from` to `to`, adjusting the event's seats
// in the same transaction. It fails with Conflict if the row is no longer in
// `from`, and with Full if `to` needs a seat and none is left.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, from, to models.RegistrationStatus) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	reg, err := scanRegistration(tx.QueryRow(ctx, `
		UPDATE registrations SET status = $3, updated_at = NOW(),
			attended = CASE WHEN $3 = 'confirmed' THEN attended ELSE FALSE END
		WHERE id = $1 AND status = $2
		RETURNING `+regColumns, id, string(from), string(to)))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.Conflict("registration was changed by another request")
		}
		return nil, fmt.Errorf("update registration: %w", err)
	}

	switch {
	case from.HoldsSeat() && !to.HoldsSeat():
		err = releaseSeat(ctx, tx, reg.EventID)
	case !from.HoldsSeat() && to.HoldsSeat():
		err = takeSeat(ctx, tx, reg.EventID)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return reg, nil
}

// SetAttended marks attendance on a confirmed registration.
func (r *Repository) SetAttended(ctx context.Context, id uuid.UUID, attended bool) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `
		UPDATE registrations SET attended = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING `+regColumns, id, attended))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.Validation("only confirmed registrations can be marked attended")
		}
		return nil, fmt.Errorf("set attended: %w", err)
	}
	return reg, nil
}

// RosterFilter narrows ListForEvent.
type RosterFilter struct {
	Status *models.RegistrationStatus
	Query  string
}

const rowSelect = `SELECT r.id, r.event_id, r.user_id, r.status, r.attended, r.registered_at, r.updated_at,
	u.name, u.email, u.college_id, u.department, u.year
	FROM registrations r JOIN users u ON u.id = r.user_id`

func scanRow(row pgx.Row) (*models.RegistrationRow, error) {
	var rr models.RegistrationRow
	var status, dept string
	if err := row.Scan(&rr.ID, &rr.EventID, &rr.UserID, &status, &rr.Attended, &rr.RegisteredAt, &rr.UpdatedAt,
		&rr.UserName, &rr.UserEmail, &rr.CollegeID, &dept, &rr.Year); err != nil {
		return nil, err
	}
	rr.Status = models.RegistrationStatus(status)
	rr.Department = models.Department(dept)
	return &rr, nil
}

// ListForEvent returns an event's roster, oldest first.
func (r *Repository) ListForEvent(ctx context.Context, eventID uuid.UUID, f RosterFilter) ([]models.RegistrationRow, error) {
	q := rowSelect + ` WHERE r.event_id = $1`
	args := []any{eventID}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		q += fmt.Sprintf(" AND r.status = $%d", len(args))
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		args = append(args, s)
		q += fmt.Sprintf(" AND (u.name ILIKE '%%' || $%d || '%%' OR u.email ILIKE '%%' || $%d || '%%')", len(args), len(args))
	}
	q += ` ORDER BY r.registered_at`

	var out []models.RegistrationRow
	err := r.eachRow(ctx, q, args, func(rr models.RegistrationRow) error {
		out = append(out, rr)
		return nil
	})
	return out, err
}

// EachForEvent streams an event's non-cancelled roster in registration order.
func (r *Repository) EachForEvent(ctx context.Context, eventID uuid.UUID, fn func(models.RegistrationRow) error) error {
	return r.eachRow(ctx, rowSelect+` WHERE r.event_id = $1 AND r.status <> 'cancelled' ORDER BY r.registered_at`,
		[]any{eventID}, fn)
}

func (r *Repository) eachRow(ctx context.Context, q string, args []any, fn func(models.RegistrationRow) error) error {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rr, err := scanRow(rows)
		if err != nil {
			return err
		}
		if err := fn(*rr); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Stats counts an event's registrations by status.
func (r *Repository) Stats(ctx context.Context, eventID uuid.UUID) (models.RegistrationStats, error) {
	var s models.RegistrationStats
	err := r.pool.QueryRow(ctx, `SELECT
			COUNT(*) FILTER (WHERE status <> 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE attended)
		FROM registrations WHERE event_id = $1`, eventID).
		Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Rejected, &s.Cancelled, &s.Attended)
	if err != nil {
		return s, fmt.Errorf("registration stats: %w", err)
	}
	return s, nil
}

// ListForUser returns a student's registrations with event summaries, newest event first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MyRegistration, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.event_id, r.user_id, r.status, r.attended, r.registered_at, r.updated_at,
			e.title, e.event_date, e.venue, e.status
		FROM registrations r JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1
		ORDER BY e.event_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}
	defer rows.Close()
	var out []models.MyRegistration
	for rows.Next() {
		var m models.MyRegistration
		var status, evStatus string
		if err := rows.Scan(&m.ID, &m.EventID, &m.UserID, &status, &m.Attended, &m.RegisteredAt, &m.UpdatedAt,
			&m.EventTitle, &m.EventDate, &m.EventVenue, &evStatus); err != nil {
			return nil, err
		}
		m.Status = models.RegistrationStatus(status)
		m.EventStatus = models.EventStatus(evStatus)
		out = append(out, m)
	}
	return out, rows.Err()
}
