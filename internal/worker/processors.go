package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/internal/notifications"
	"github.com/campus-events/backend/pkg/queue"
)

// EmailLogStore tracks delivery state. *notifications.Repository satisfies it.
type EmailLogStore interface {
	Create(ctx context.Context, l *models.EmailLog) (uuid.UUID, error)
	MarkSent(ctx context.Context, id uuid.UUID, provider, providerID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, provider, msg string) error
}

// EmailProcessor delivers email jobs and records each attempt in email_logs.
type EmailProcessor struct {
	logs   EmailLogStore
	sender notifications.Sender
	logger *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(logs EmailLogStore, sender notifications.Sender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{logs: logs, sender: sender, logger: logger}
}

// Process sends one email.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal email payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		p.logger.Warn("email job without recipient dropped", zap.String("job_id", job.ID))
		return nil
	}
	logID, err := p.logs.Create(ctx, &models.EmailLog{
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		EventID:        payload.EventID,
		RegistrationID: payload.RegistrationID,
	})
	if err != nil {
		return err
	}
	providerID, err := p.sender.Send(ctx, notifications.Message{
		To:      payload.RecipientEmail,
		Subject: payload.Subject,
		HTML:    payload.BodyHTML,
	})
	if err != nil {
		if mErr := p.logs.MarkFailed(ctx, logID, p.sender.Name(), err.Error()); mErr != nil {
			p.logger.Error("mark email failed", zap.String("log_id", logID.String()), zap.Error(mErr))
		}
		return err
	}
	if err := p.logs.MarkSent(ctx, logID, p.sender.Name(), providerID); err != nil {
		// Delivered already; retrying would send a duplicate.
		p.logger.Error("mark email sent", zap.String("log_id", logID.String()), zap.Error(err))
	}
	return nil
}

// SnapshotBuilder computes and stores a snapshot. *analytics.Service satisfies it.
type SnapshotBuilder interface {
	BuildSnapshot(ctx context.Context, typ models.SnapshotType, requestedBy uuid.UUID, end time.Time) (*models.AnalyticsSnapshot, error)
}

// SnapshotProcessor turns snapshot jobs into stored analytics snapshots.
type SnapshotProcessor struct {
	builder SnapshotBuilder
	logger  *zap.Logger
}

// NewSnapshotProcessor creates a snapshot processor.
func NewSnapshotProcessor(builder SnapshotBuilder, logger *zap.Logger) *SnapshotProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotProcessor{builder: builder, logger: logger}
}

// Process builds one snapshot for the period ending when it was requested.
func (p *SnapshotProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.SnapshotPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal snapshot payload: %w", err)
	}
	typ, ok := models.ParseSnapshotType(payload.SnapshotType)
	if !ok {
		p.logger.Warn("snapshot job with unknown type dropped", zap.String("job_id", job.ID), zap.String("type", payload.SnapshotType))
		return nil
	}
	end := payload.RequestedAt
	if end.IsZero() {
		end = job.CreatedAt
	}
	snap, err := p.builder.BuildSnapshot(ctx, typ, payload.RequestedBy, end)
	if err != nil {
		return err
	}
	p.logger.Info("snapshot stored", zap.String("snapshot_id", snap.ID.String()), zap.String("type", string(typ)))
	return nil
}
