package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/backend/internal/models"
)

// Repository appends and reads audit records. It never updates or deletes them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one audit record.
func (r *Repository) Insert(ctx context.Context, l *models.AuditLog) error {
	meta := l.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	const q = `INSERT INTO audit_logs (action, actor_id, actor_role, target_type, target_id, description, metadata, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, string(l.Action), l.ActorID, string(l.ActorRole), string(l.TargetType),
		l.TargetID, l.Description, []byte(meta), l.IPAddress, l.UserAgent).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	Action  string
	ActorID *uuid.UUID
	Limit   int
	Offset  int
}

// List returns audit records newest first, with the total matching count.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.AuditLog, int, error) {
	var where []string
	var args []any
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("a.action = $%d", len(args)))
	}
	if f.ActorID != nil {
		args = append(args, *f.ActorID)
		where = append(where, fmt.Sprintf("a.actor_id = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	q := `SELECT a.id, a.action, a.actor_id, a.actor_role, COALESCE(u.name,''), a.target_type, a.target_id,
		a.description, a.metadata, a.ip_address, a.user_agent, a.created_at
		FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id` + cond +
		fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	var list []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		var action, role, target string
		var meta []byte
		if err := rows.Scan(&l.ID, &action, &l.ActorID, &role, &l.ActorName, &target, &l.TargetID,
			&l.Description, &meta, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		l.Action = models.AuditAction(action)
		l.ActorRole = models.Role(role)
		l.TargetType = models.AuditTarget(target)
		l.Metadata = meta
		list = append(list, l)
	}
	return list, total, rows.Err()
}

// Each streams every audit record oldest first, for report export.
func (r *Repository) Each(ctx context.Context, fn func(models.AuditLog) error) error {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.action, COALESCE(u.name,''), a.actor_role, a.target_type, a.target_id,
		a.description, a.created_at FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id ORDER BY a.created_at`)
	if err != nil {
		return fmt.Errorf("iterate audit logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l models.AuditLog
		var action, role, target string
		if err := rows.Scan(&l.ID, &action, &l.ActorName, &role, &target, &l.TargetID, &l.Description, &l.CreatedAt); err != nil {
			return err
		}
		l.Action = models.AuditAction(action)
		l.ActorRole = models.Role(role)
		l.TargetType = models.AuditTarget(target)
		if err := fn(l); err != nil {
			return err
		}
	}
	return rows.Err()
}
