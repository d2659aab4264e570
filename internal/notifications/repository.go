package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-events/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row and returns its id.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) (uuid.UUID, error) {
	const q = `INSERT INTO email_logs (email_type, recipient_email, subject, status, event_id, registration_id)
		VALUES ($1, $2, $3, 'pending', $4, $5) RETURNING id`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, l.EmailType, l.RecipientEmail, l.Subject, l.EventID, l.RegistrationID).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("insert email log: %w", err)
	}
	return id, nil
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, provider, providerID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = 'sent', provider = $2, provider_id = $3,
		error_message = NULL, sent_at = NOW() WHERE id = $1`, id, provider, providerID)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, provider, msg string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = 'failed', provider = $2, error_message = $3 WHERE id = $1`,
		id, provider, msg)
	if err != nil {
		return fmt.Errorf("mark email failed: %w", err)
	}
	return nil
}

// List returns recent email logs, newest first, optionally for one event.
func (r *Repository) List(ctx context.Context, eventID *uuid.UUID, limit int) ([]*models.EmailLog, error) {
	const q = `SELECT id, event_id, registration_id, email_type, recipient_email, subject, status, provider, provider_id,
		sent_at, COALESCE(error_message,''), created_at
		FROM email_logs
		WHERE ($1::uuid IS NULL OR event_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.EventID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail, &el.Subject,
			&el.Status, &el.Provider, &el.ProviderID, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
