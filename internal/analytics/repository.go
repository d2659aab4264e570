package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/backend/internal/models"
)

// Repository runs the aggregate queries behind the dashboards.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Totals counts platform-wide entities. Users who logged in after activeSince are weekly active.
func (r *Repository) Totals(ctx context.Context, activeSince time.Time) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE role = 'club_admin'),
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM events WHERE status = 'published'),
			(SELECT COUNT(*) FROM events WHERE status = 'draft'),
			(SELECT COUNT(*) FROM registrations WHERE status <> 'cancelled'),
			(SELECT COUNT(*) FROM users WHERE last_login_at >= $1)`, activeSince).
		Scan(&t.Users, &t.Clubs, &t.Events, &t.Published, &t.Drafts, &t.Registrations, &t.WeeklyActive)
	if err != nil {
		return Totals{}, fmt.Errorf("analytics totals: %w", err)
	}
	return t, nil
}

// UserStats returns role and department distribution plus sign-up and inactivity counts since the given time.
func (r *Repository) UserStats(ctx context.Context, since time.Time) (UserStats, error) {
	s := UserStats{ByRole: map[models.Role]int{}, ByDepartment: map[models.Department]int{}}
	rows, err := r.pool.Query(ctx, `SELECT role, department, COUNT(*) FROM users GROUP BY role, department`)
	if err != nil {
		return s, fmt.Errorf("user distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role, dept string
		var n int
		if err := rows.Scan(&role, &dept, &n); err != nil {
			return s, err
		}
		s.ByRole[models.Role(role)] += n
		if dept != "" {
			s.ByDepartment[models.Department(dept)] += n
		}
		s.Total += n
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	err = r.pool.QueryRow(ctx, `SELECT
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE last_login_at IS NULL OR last_login_at < $1)
		FROM users`, since).Scan(&s.NewUsers, &s.Inactive)
	if err != nil {
		return s, fmt.Errorf("user activity: %w", err)
	}
	return s, nil
}

// EventStats returns category and status distribution with seat usage.
func (r *Repository) EventStats(ctx context.Context) (EventStats, error) {
	s := EventStats{ByCategory: map[models.EventCategory]int{}, ByStatus: map[models.EventStatus]int{}}
	rows, err := r.pool.Query(ctx, `SELECT category, status, COUNT(*), COALESCE(SUM(capacity),0), COALESCE(SUM(capacity - seats_remaining),0)
		FROM events GROUP BY category, status`)
	if err != nil {
		return s, fmt.Errorf("event distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat, status string
		var n, capacity, held int
		if err := rows.Scan(&cat, &status, &n, &capacity, &held); err != nil {
			return s, err
		}
		s.ByCategory[models.EventCategory(cat)] += n
		s.ByStatus[models.EventStatus(status)] += n
		s.Total += n
		s.Capacity += capacity
		s.SeatsTaken += held
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE status <> 'cancelled'`).Scan(&s.Registrations); err != nil {
		return s, fmt.Errorf("registration count: %w", err)
	}
	return s, nil
}

// Activity counts rows created inside [from, to).
func (r *Repository) Activity(ctx context.Context, from, to time.Time) (Activity, error) {
	var a Activity
	err := r.pool.QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM events WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM registrations WHERE registered_at >= $1 AND registered_at < $2),
			(SELECT COUNT(*) FROM registrations WHERE status = 'cancelled' AND updated_at >= $1 AND updated_at < $2)`, from, to).
		Scan(&a.NewUsers, &a.NewEvents, &a.NewRegistrations, &a.Cancellations)
	if err != nil {
		return Activity{}, fmt.Errorf("period activity: %w", err)
	}
	return a, nil
}

// Created counts users, club admins and events created inside [from, to).
func (r *Repository) Created(ctx context.Context, from, to time.Time) (Created, error) {
	var c Created
	err := r.pool.QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM users WHERE role = 'club_admin' AND created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM events WHERE created_at >= $1 AND created_at < $2)`, from, to).
		Scan(&c.Users, &c.Clubs, &c.Events)
	if err != nil {
		return Created{}, fmt.Errorf("created counts: %w", err)
	}
	return c, nil
}

// RiskSignals returns per-club cancellations of events created since the given
// time and how many edits were made to events that are now published.
func (r *Repository) RiskSignals(ctx context.Context, since time.Time) (RiskSignals, error) {
	var s RiskSignals
	rows, err := r.pool.Query(ctx, `SELECT e.club_id, COALESCE(NULLIF(u.club_name,''), u.name), COUNT(*)
		FROM events e JOIN users u ON u.id = e.club_id
		WHERE e.status = 'cancelled' AND e.created_at >= $1
		GROUP BY e.club_id, u.club_name, u.name
		ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return s, fmt.Errorf("club cancellations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c ClubCount
		if err := rows.Scan(&c.ClubID, &c.ClubName, &c.Count); err != nil {
			return s, err
		}
		s.Cancellations = append(s.Cancellations, c)
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a
		JOIN events e ON a.target_id = e.id::text
		WHERE a.action = 'EVENT_UPDATED' AND a.created_at >= $1 AND e.status = 'published'`, since).
		Scan(&s.PublishedEdits)
	if err != nil {
		return s, fmt.Errorf("published edits: %w", err)
	}
	return s, nil
}

// Publishing returns every club admin's published and cancelled counts for events
// created since the given time, plus the platform totals for the same window.
func (r *Repository) Publishing(ctx context.Context, since time.Time) (Publishing, error) {
	var p Publishing
	rows, err := r.pool.Query(ctx, `SELECT u.id, COALESCE(NULLIF(u.club_name,''), u.name), u.email,
			COUNT(e.id) FILTER (WHERE e.status = 'published'),
			COUNT(e.id) FILTER (WHERE e.status = 'cancelled'),
			u.last_login_at
		FROM users u LEFT JOIN events e ON e.club_id = u.id AND e.created_at >= $1
		WHERE u.role = 'club_admin'
		GROUP BY u.id
		ORDER BY 4 DESC, u.created_at`, since)
	if err != nil {
		return p, fmt.Errorf("club publishing: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c ClubWorkload
		if err := rows.Scan(&c.ClubID, &c.ClubName, &c.Email, &c.Published, &c.Cancelled, &c.LastLoginAt); err != nil {
			return p, err
		}
		p.Clubs = append(p.Clubs, c)
	}
	if err := rows.Err(); err != nil {
		return p, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM events WHERE created_at >= $1`, since).Scan(&p.Events, &p.Cancelled)
	if err != nil {
		return p, fmt.Errorf("event outcomes: %w", err)
	}
	return p, nil
}

// SaveSnapshot inserts s and fills its id and created_at.
func (r *Repository) SaveSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error {
	return r.pool.QueryRow(ctx, `INSERT INTO analytics_snapshots (snapshot_type, period_start, period_end, data, generated_by)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		string(s.Type), s.PeriodStart, s.PeriodEnd, s.Data, s.GeneratedBy).Scan(&s.ID, &s.CreatedAt)
}

// ListSnapshots returns the newest snapshots first.
func (r *Repository) ListSnapshots(ctx context.Context, limit int) ([]models.AnalyticsSnapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, snapshot_type, period_start, period_end, data, generated_by, created_at
		FROM analytics_snapshots ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	var out []models.AnalyticsSnapshot
	for rows.Next() {
		var s models.AnalyticsSnapshot
		var typ string
		if err := rows.Scan(&s.ID, &typ, &s.PeriodStart, &s.PeriodEnd, &s.Data, &s.GeneratedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Type = models.SnapshotType(typ)
		out = append(out, s)
	}
	return out, rows.Err()
}
