package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/queue"
)

type captureQueue struct {
	jobs []queue.EmailPayload
	err  error
}

func (c *captureQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if c.err != nil {
		return c.err
	}
	c.jobs = append(c.jobs, p)
	return nil
}

func TestRegistrationReceivedComposesEmail(t *testing.T) {
	q := &captureQueue{}
	n := NewNotifier(q, nil)
	u := &models.User{Name: "Asha <script>", Email: "asha@college.edu"}
	e := &models.Event{ID: uuid.New(), Title: "Hackathon", Venue: "Hall A", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	r := &models.Registration{ID: uuid.New(), Status: models.RegistrationPending}

	n.RegistrationReceived(context.Background(), u, e, r)

	require.Len(t, q.jobs, 1)
	job := q.jobs[0]
	assert.Equal(t, models.EmailTypeRegistrationPlaced, job.EmailType)
	assert.Equal(t, "asha@college.edu", job.RecipientEmail)
	assert.Equal(t, e.ID, *job.EventID)
	assert.Contains(t, job.BodyHTML, "Hackathon")
	assert.Contains(t, job.BodyHTML, "2026-03-01")
	assert.NotContains(t, job.BodyHTML, "<script>")
}

func TestNotifierIsBestEffort(t *testing.T) {
	n := NewNotifier(&captureQueue{err: errors.New("redis down")}, nil)
	assert.NotPanics(t, func() {
		n.SendOTP(context.Background(), &models.User{Email: "a@b.c"}, "123456", 10)
	})

	disabled := NewNotifier(nil, nil)
	assert.NotPanics(t, func() {
		disabled.SendOTP(context.Background(), &models.User{Email: "a@b.c"}, "123456", 10)
	})
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	s := NewSender("", "noreply@example.com", "Campus", nil)
	assert.Equal(t, "log", s.Name())

	id, err := s.Send(context.Background(), Message{To: "x@y.z", Subject: "hi"})
	assert.NoError(t, err)
	assert.Empty(t, id)

	assert.Equal(t, "resend", NewSender("re_test", "noreply@example.com", "", nil).Name())
}
