package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for email jobs.
	QueueEmails = "campus:emails"
	// QueueAnalytics is the Redis list key for analytics snapshot jobs.
	QueueAnalytics = "campus:analytics"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "campus:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEmail    JobType = "email"
	JobTypeSnapshot JobType = "analytics_snapshot"
)

// EmailPayload is the payload for email jobs.
type EmailPayload struct {
	EmailType      string     `json:"email_type"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	Subject        string     `json:"subject"`
	BodyHTML       string     `json:"body_html"`
}

// SnapshotPayload asks the worker to compute and store an analytics snapshot.
type SnapshotPayload struct {
	SnapshotType string    `json:"snapshot_type"`
	RequestedBy  uuid.UUID `json:"requested_by"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func keyFor(t JobType) string {
	switch t {
	case JobTypeEmail:
		return QueueEmails
	case JobTypeSnapshot:
		return QueueAnalytics
	}
	return QueueDLQ
}

func (q *Queue) push(ctx context.Context, t JobType, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, keyFor(t), raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	return job.ID, nil
}

// EnqueueEmail enqueues an email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	id, err := q.push(ctx, JobTypeEmail, payload)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued email job", zap.String("job_id", id), zap.String("email_type", payload.EmailType))
	return nil
}

// EnqueueSnapshot enqueues an analytics snapshot job and returns its id.
func (q *Queue) EnqueueSnapshot(ctx context.Context, payload SnapshotPayload) (string, error) {
	id, err := q.push(ctx, JobTypeSnapshot, payload)
	if err != nil {
		return "", err
	}
	q.logger.Debug("enqueued snapshot job", zap.String("job_id", id), zap.String("snapshot_type", payload.SnapshotType))
	return id, nil
}

// Dequeue blocks up to timeout for a job on any work queue. Returns nil job on timeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueEmails, QueueAnalytics).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, keyFor(job.Type), raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DLQLength returns the number of dead-lettered jobs.
func (q *Queue) DLQLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueDLQ).Result()
}
