package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/metrics"
	"github.com/campus-events/backend/pkg/queue"
)

// DequeueTimeout bounds each blocking pop so shutdown is noticed promptly.
const DequeueTimeout = 5 * time.Second

// Source is the job queue the worker drains. *queue.Queue satisfies it.
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor handles one job type.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Worker dispatches dequeued jobs to their processors and retries failures.
type Worker struct {
	src        Source
	processors map[queue.JobType]Processor
	backoff    time.Duration
	logger     *zap.Logger
}

// New creates a worker with no processors registered.
func New(src Source, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{src: src, processors: map[queue.JobType]Processor{}, backoff: queue.RetryBackoff, logger: logger}
}

// Handle registers p for jobs of type t.
func (w *Worker) Handle(t queue.JobType, p Processor) {
	w.processors[t] = p
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Dispatch runs job through its processor. A failed job goes back to the queue, or to the DLQ once out of attempts.
func (w *Worker) Dispatch(ctx context.Context, job *queue.Job) error {
	p, ok := w.processors[job.Type]
	if !ok {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "unknown").Inc()
		w.logger.Warn("no processor for job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	w.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
	if err := p.Process(ctx, job); err != nil {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "error").Inc()
		w.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
		if reErr := w.src.Retry(ctx, job); reErr != nil {
			w.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		}
		return err
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), "success").Inc()
	return nil
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("processors", len(w.processors)))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := w.src.Dequeue(ctx, DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			w.sleep(ctx, w.backoff)
			continue
		}
		if job == nil {
			continue
		}
		if err := w.Dispatch(ctx, job); err != nil {
			w.sleep(ctx, w.backoff)
		}
	}
}
