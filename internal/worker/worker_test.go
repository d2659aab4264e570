package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/internal/metrics"
	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/internal/notifications"
	"github.com/campus-events/backend/pkg/queue"
)

func job(t *testing.T, typ queue.JobType, payload any) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: typ, Payload: raw, CreatedAt: time.Now()}
}

type memLogs struct {
	created []models.EmailLog
	status  map[uuid.UUID]string
	errMsg  map[uuid.UUID]string
}

func newMemLogs() *memLogs {
	return &memLogs{status: map[uuid.UUID]string{}, errMsg: map[uuid.UUID]string{}}
}

func (m *memLogs) Create(_ context.Context, l *models.EmailLog) (uuid.UUID, error) {
	id := uuid.New()
	m.created = append(m.created, *l)
	m.status[id] = models.EmailLogStatusPending
	return id, nil
}

func (m *memLogs) MarkSent(_ context.Context, id uuid.UUID, _, _ string) error {
	m.status[id] = models.EmailLogStatusSent
	return nil
}

func (m *memLogs) MarkFailed(_ context.Context, id uuid.UUID, _, msg string) error {
	m.status[id] = models.EmailLogStatusFailed
	m.errMsg[id] = msg
	return nil
}

type fakeSender struct {
	err  error
	sent []notifications.Message
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) Send(_ context.Context, m notifications.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, m)
	return "msg-1", nil
}

func TestEmailProcessor(t *testing.T) {
	logs := newMemLogs()
	sender := &fakeSender{}
	p := NewEmailProcessor(logs, sender, nil)
	eventID := uuid.New()

	err := p.Process(context.Background(), job(t, queue.JobTypeEmail, queue.EmailPayload{
		EmailType:      models.EmailTypeRegistrationPlaced,
		EventID:        &eventID,
		RecipientEmail: "asha@campus.test",
		Subject:        "Registration received",
		BodyHTML:       "<p>hi</p>",
	}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "asha@campus.test", sender.sent[0].To)
	require.Len(t, logs.created, 1)
	assert.Equal(t, &eventID, logs.created[0].EventID)
	for _, s := range logs.status {
		assert.Equal(t, models.EmailLogStatusSent, s)
	}
}

func TestEmailProcessorRecordsFailure(t *testing.T) {
	logs := newMemLogs()
	p := NewEmailProcessor(logs, &fakeSender{err: errors.New("smtp down")}, nil)

	err := p.Process(context.Background(), job(t, queue.JobTypeEmail, queue.EmailPayload{RecipientEmail: "x@campus.test"}))
	require.Error(t, err)
	for id, s := range logs.status {
		assert.Equal(t, models.EmailLogStatusFailed, s)
		assert.Equal(t, "smtp down", logs.errMsg[id])
	}

	require.NoError(t, p.Process(context.Background(), job(t, queue.JobTypeEmail, queue.EmailPayload{})))
	assert.Len(t, logs.created, 1, "jobs without a recipient are dropped")
}

type fakeBuilder struct {
	typ models.SnapshotType
	end time.Time
	by  uuid.UUID
}

func (b *fakeBuilder) BuildSnapshot(_ context.Context, typ models.SnapshotType, by uuid.UUID, end time.Time) (*models.AnalyticsSnapshot, error) {
	b.typ, b.by, b.end = typ, by, end
	return &models.AnalyticsSnapshot{ID: uuid.New(), Type: typ}, nil
}

func TestSnapshotProcessor(t *testing.T) {
	b := &fakeBuilder{}
	p := NewSnapshotProcessor(b, nil)
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	admin := uuid.New()

	require.NoError(t, p.Process(context.Background(), job(t, queue.JobTypeSnapshot, queue.SnapshotPayload{
		SnapshotType: "weekly", RequestedBy: admin, RequestedAt: at,
	})))
	assert.Equal(t, models.SnapshotWeekly, b.typ)
	assert.Equal(t, admin, b.by)
	assert.True(t, at.Equal(b.end))

	b.typ = ""
	require.NoError(t, p.Process(context.Background(), job(t, queue.JobTypeSnapshot, queue.SnapshotPayload{SnapshotType: "hourly"})))
	assert.Empty(t, b.typ)
}

type fakeSource struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
	drained chan struct{}
}

func (s *fakeSource) Dequeue(ctx context.Context, _ time.Duration) (*queue.Job, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		select {
		case <-s.drained:
		default:
			close(s.drained)
		}
		<-ctx.Done()
		return nil, "", ctx.Err()
	}
	j := s.jobs[0]
	s.jobs = s.jobs[1:]
	return j, "", nil
}

func (s *fakeSource) Retry(_ context.Context, j *queue.Job) error {
	s.retried = append(s.retried, j)
	return nil
}

type funcProcessor func(context.Context, *queue.Job) error

func (f funcProcessor) Process(ctx context.Context, j *queue.Job) error { return f(ctx, j) }

func TestRunDispatchesAndRetries(t *testing.T) {
	ok := job(t, queue.JobTypeEmail, queue.EmailPayload{})
	bad := job(t, queue.JobTypeSnapshot, queue.SnapshotPayload{})
	src := &fakeSource{jobs: []*queue.Job{ok, bad}, drained: make(chan struct{})}

	w := New(src, nil)
	w.backoff = time.Millisecond
	var handled []string
	w.Handle(queue.JobTypeEmail, funcProcessor(func(_ context.Context, j *queue.Job) error {
		handled = append(handled, j.ID)
		return nil
	}))
	w.Handle(queue.JobTypeSnapshot, funcProcessor(func(context.Context, *queue.Job) error {
		return errors.New("db unavailable")
	}))

	before := testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(string(queue.JobTypeSnapshot), "error"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	<-src.drained
	cancel()
	<-done

	assert.Equal(t, []string{ok.ID}, handled)
	require.Len(t, src.retried, 1)
	assert.Equal(t, bad.ID, src.retried[0].ID)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(string(queue.JobTypeSnapshot), "error")))
}

func TestDispatchUnknownType(t *testing.T) {
	w := New(&fakeSource{drained: make(chan struct{})}, nil)
	err := w.Dispatch(context.Background(), &queue.Job{ID: "x", Type: "fax"})
	assert.Error(t, err)
}
