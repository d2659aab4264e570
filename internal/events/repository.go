package events

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

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventSelect = `SELECT e.id, e.title, e.description, e.event_date, e.event_time, e.venue, e.capacity,
	e.seats_remaining, e.club_id, COALESCE(NULLIF(u.club_name,''), u.name), e.status, e.category,
	COALESCE(e.poster_url,''), e.created_at, e.updated_at
	FROM events e JOIN users u ON u.id = e.club_id`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var status, category string
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Venue, &e.Capacity,
		&e.SeatsRemaining, &e.ClubID, &e.ClubName, &status, &category,
		&e.PosterURL, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = models.EventStatus(status)
	e.Category = models.EventCategory(category)
	return &e, nil
}

// Create inserts an event with every seat available.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, event_date, event_time, venue, capacity, seats_remaining,
			club_id, status, category, poster_url)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8, $9, NULLIF($10,''))
		RETURNING id, seats_remaining, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Date, e.Time, e.Venue, e.Capacity,
		e.ClubID, string(e.Status), string(e.Category), e.PosterURL).
		Scan(&e.ID, &e.SeatsRemaining, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound("event")
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListFilter narrows List. A nil Status lists every status.
type ListFilter struct {
	ClubID   *uuid.UUID
	Status   *models.EventStatus
	Category *models.EventCategory
	Query    string
	Upcoming bool
	Limit    int
	Offset   int
}

// List returns events ordered by date, with the total matching count.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Event, int, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ClubID != nil {
		add("e.club_id = $%d", *f.ClubID)
	}
	if f.Status != nil {
		add("e.status = $%d", string(*f.Status))
	}
	if f.Category != nil {
		add("e.category = $%d", string(*f.Category))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("e.title ILIKE '%%' || $%d || '%%'", q)
	}
	if f.Upcoming {
		where = append(where, "e.event_date >= CURRENT_DATE")
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	q := eventSelect + cond + fmt.Sprintf(" ORDER BY e.event_date, e.event_time, e.created_at LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *e)
	}
	return list, total, rows.Err()
}

// UpdateFields holds the fields of a partial update; nil means unchanged.
type UpdateFields struct {
	Title       *string
	Description *string
	Date        *time.Time
	Time        *string
	Venue       *string
	Capacity    *int
	Status      *models.EventStatus
	Category    *models.EventCategory
	PosterURL   *string
}

// Update applies f in one statement. A capacity change moves seats_remaining by
// the same delta and is refused when it would leave fewer seats than are held.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, f UpdateFields) (*models.Event, error) {
	const q = `UPDATE events SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			event_date = COALESCE($4, event_date),
			event_time = COALESCE($5, event_time),
			venue = COALESCE($6, venue),
			seats_remaining = seats_remaining + (COALESCE($7::int, capacity) - capacity),
			capacity = COALESCE($7::int, capacity),
			status = COALESCE($8, status),
			category = COALESCE($9, category),
			poster_url = COALESCE($10, poster_url),
			updated_at = NOW()
		WHERE id = $1 AND seats_remaining + (COALESCE($7::int, capacity) - capacity) >= 0`
	var status, category *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	if f.Category != nil {
		c := string(*f.Category)
		category = &c
	}
	tag, err := r.pool.Exec(ctx, q, id, f.Title, f.Description, f.Date, f.Time, f.Venue, f.Capacity,
		status, category, f.PosterURL)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Validation("capacity cannot be lower than the %d seats already taken", current.SeatsHeld())
	}
	return r.GetByID(ctx, id)
}

// Delete removes an event and its registrations in one transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	regs, err := tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete registrations: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, apperr.NotFound("event")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return regs.RowsAffected(), nil
}

// CountByClub returns how many events a user owns.
func (r *Repository) CountByClub(ctx context.Context, clubID uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE club_id = $1`, clubID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count club events: %w", err)
	}
	return n, nil
}

// Each streams every event with its registration count, for report export.
func (r *Repository) Each(ctx context.Context, fn func(e models.Event, registrations int) error) error {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.title, e.description, e.event_date, e.event_time, e.venue, e.capacity,
		e.seats_remaining, e.club_id, COALESCE(NULLIF(u.club_name,''), u.name), e.status, e.category,
		COALESCE(e.poster_url,''), e.created_at, e.updated_at,
		(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status <> 'cancelled')
		FROM events e JOIN users u ON u.id = e.club_id ORDER BY e.event_date`)
	if err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e models.Event
		var status, category string
		var regs int
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Venue, &e.Capacity,
			&e.SeatsRemaining, &e.ClubID, &e.ClubName, &status, &category,
			&e.PosterURL, &e.CreatedAt, &e.UpdatedAt, &regs); err != nil {
			return err
		}
		e.Status = models.EventStatus(status)
		e.Category = models.EventCategory(category)
		if err := fn(e, regs); err != nil {
			return err
		}
	}
	return rows.Err()
}
