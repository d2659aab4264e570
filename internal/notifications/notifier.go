package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/models"
	"github.com/campus-events/backend/pkg/queue"
)

// Enqueuer accepts email jobs. *queue.Queue satisfies it.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Notifier composes notification emails and hands them to the job queue.
// Every method is best effort: failures are logged and never returned.
type Notifier struct {
	q      Enqueuer
	logger *zap.Logger
}

// NewNotifier creates a notifier. A nil queue disables notifications.
func NewNotifier(q Enqueuer, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{q: q, logger: logger}
}

var templates = template.Must(template.New("mail").Parse(`
{{define "otp"}}<p>Hi {{.Name}},</p><p>Your verification code is <strong>{{.Code}}</strong>. It expires in {{.Minutes}} minutes.</p>{{end}}
{{define "registered"}}<p>Hi {{.Name}},</p><p>We received your registration for <strong>{{.Event}}</strong> on {{.Date}} at {{.Venue}}. Its status is <em>{{.Status}}</em>.</p>{{end}}
{{define "status"}}<p>Hi {{.Name}},</p><p>Your registration for <strong>{{.Event}}</strong> is now <em>{{.Status}}</em>.</p>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *Notifier) enqueue(ctx context.Context, p queue.EmailPayload) {
	if n.q == nil {
		return
	}
	if err := n.q.EnqueueEmail(context.WithoutCancel(ctx), p); err != nil {
		n.logger.Warn("enqueue email failed", zap.String("email_type", p.EmailType), zap.Error(err))
	}
}

// SendOTP queues a verification code email.
func (n *Notifier) SendOTP(ctx context.Context, u *models.User, code string, minutes int) {
	html, err := render("otp", map[string]any{"Name": u.Name, "Code": code, "Minutes": minutes})
	if err != nil {
		n.logger.Error("render otp email", zap.Error(err))
		return
	}
	n.enqueue(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeOTP,
		RecipientEmail: u.Email,
		RecipientName:  u.Name,
		Subject:        "Verify your email",
		BodyHTML:       html,
	})
}

// RegistrationReceived queues the confirmation that a registration was placed.
func (n *Notifier) RegistrationReceived(ctx context.Context, u *models.User, e *models.Event, r *models.Registration) {
	html, err := render("registered", map[string]any{
		"Name": u.Name, "Event": e.Title, "Date": e.Date.Format("2006-01-02"), "Venue": e.Venue, "Status": r.Status,
	})
	if err != nil {
		n.logger.Error("render registration email", zap.Error(err))
		return
	}
	n.enqueue(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeRegistrationPlaced,
		EventID:        uuidPtr(e.ID),
		RegistrationID: uuidPtr(r.ID),
		RecipientEmail: u.Email,
		RecipientName:  u.Name,
		Subject:        fmt.Sprintf("Registration received: %s", e.Title),
		BodyHTML:       html,
	})
}

// StatusChanged queues a notice that an admin changed a registration's status.
func (n *Notifier) StatusChanged(ctx context.Context, u *models.User, e *models.Event, r *models.Registration) {
	html, err := render("status", map[string]any{"Name": u.Name, "Event": e.Title, "Status": r.Status})
	if err != nil {
		n.logger.Error("render status email", zap.Error(err))
		return
	}
	n.enqueue(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeStatusChanged,
		EventID:        uuidPtr(e.ID),
		RegistrationID: uuidPtr(r.ID),
		RecipientEmail: u.Email,
		RecipientName:  u.Name,
		Subject:        fmt.Sprintf("Registration %s: %s", r.Status, e.Title),
		BodyHTML:       html,
	})
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
