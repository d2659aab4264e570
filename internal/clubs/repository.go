package clubs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/backend/internal/models"
)

// Repository reads the club directory from club admin accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a clubs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns active clubs with their published event counts, by name.
func (r *Repository) ListActive(ctx context.Context) ([]models.Club, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, COALESCE(NULLIF(u.club_name,''), u.name), COALESCE(u.club_description,''),
			u.name, u.department, u.created_at,
			(SELECT COUNT(*) FROM events e WHERE e.club_id = u.id AND e.status = 'published')
		FROM users u
		WHERE u.role = 'club_admin' AND u.status = 'active'
		ORDER BY 2`)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()
	var out []models.Club
	for rows.Next() {
		var c models.Club
		var dept string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.AdminName, &dept, &c.CreatedAt, &c.PublishedEvents); err != nil {
			return nil, err
		}
		c.Department = models.Department(dept)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats returns every club with event and registration totals.
func (r *Repository) Stats(ctx context.Context) ([]models.ClubStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, COALESCE(NULLIF(u.club_name,''), u.name), COALESCE(u.club_description,''),
			u.name, u.department, u.created_at, u.email, u.status,
			COUNT(DISTINCT e.id) FILTER (WHERE e.status = 'published'),
			COUNT(DISTINCT e.id),
			COUNT(reg.id) FILTER (WHERE reg.status <> 'cancelled')
		FROM users u
		LEFT JOIN events e ON e.club_id = u.id
		LEFT JOIN registrations reg ON reg.event_id = e.id
		WHERE u.role = 'club_admin'
		GROUP BY u.id
		ORDER BY 2`)
	if err != nil {
		return nil, fmt.Errorf("club stats: %w", err)
	}
	defer rows.Close()
	var out []models.ClubStats
	for rows.Next() {
		var s models.ClubStats
		var dept, status string
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.AdminName, &dept, &s.CreatedAt, &s.AdminEmail, &status,
			&s.PublishedEvents, &s.TotalEvents, &s.Registrations); err != nil {
			return nil, err
		}
		s.Department = models.Department(dept)
		s.Status = models.UserStatus(status)
		if s.TotalEvents > 0 {
			s.AvgRegistrations = float64(s.Registrations) / float64(s.TotalEvents)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
