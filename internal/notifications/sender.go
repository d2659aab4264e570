package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Name() string
	Send(ctx context.Context, m Message) (string, error)
}

// NewSender returns a Resend sender when apiKey is set, otherwise a log-only sender.
func NewSender(apiKey, fromAddress, fromName string, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}
	if apiKey == "" {
		logger.Warn("RESEND_API_KEY not set; emails will be logged, not delivered")
		return &LogSender{logger: logger}
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from, logger: logger}
}

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

func (s *ResendSender) Name() string { return "resend" }

// Send delivers m. Rate-limit responses are returned as errors so the job is retried.
func (s *ResendSender) Send(ctx context.Context, m Message) (string, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{m.To},
		Subject: m.Subject,
		Html:    m.HTML,
	})
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn("resend rate limit exceeded",
				zap.String("limit", rateLimitErr.Limit),
				zap.String("remaining", rateLimitErr.Remaining),
				zap.String("reset", rateLimitErr.Reset),
			)
			return "", fmt.Errorf("email rate limit exceeded (resets in %s seconds): %w", rateLimitErr.Reset, err)
		}
		return "", fmt.Errorf("resend API error: %w", err)
	}
	s.logger.Info("email sent via Resend", zap.String("email_id", sent.Id), zap.String("to", m.To))
	return sent.Id, nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, m Message) (string, error) {
	s.logger.Info("email (log only)", zap.String("to", m.To), zap.String("subject", m.Subject))
	return "", nil
}
