package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
)

// Entry describes one privileged action.
type Entry struct {
	Action      models.AuditAction
	Actor       authz.Identity
	TargetType  models.AuditTarget
	TargetID    string
	Description string
	Metadata    map[string]any
}

// Store is the append-only sink the recorder writes to.
type Store interface {
	Insert(ctx context.Context, l *models.AuditLog) error
}

// Recorder appends audit entries. A failed write is logged and never fails the caller.
type Recorder struct {
	store  Store
	logger *zap.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger}
}

// Record appends e, enriched with the request metadata carried by ctx.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	l := &models.AuditLog{
		Action:      e.Action,
		ActorRole:   e.Actor.Role,
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		Description: e.Description,
	}
	if !e.Actor.IsZero() {
		id := e.Actor.UserID
		l.ActorID = &id
	}
	if len(e.Metadata) > 0 {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			r.logger.Warn("audit metadata not serializable", zap.String("action", string(e.Action)), zap.Error(err))
		} else {
			l.Metadata = meta
		}
	}
	if m, ok := metaFrom(ctx); ok {
		l.IPAddress = m.IP
		l.UserAgent = m.UserAgent
	}
	// Detach from request cancellation so a client disconnect does not drop the record.
	if err := r.store.Insert(context.WithoutCancel(ctx), l); err != nil {
		r.logger.Error("audit write failed",
			zap.String("action", string(e.Action)),
			zap.String("target_id", e.TargetID),
			zap.Error(err),
		)
	}
}

// RequestMeta is the client information attached to audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type metaKey struct{}

// WithRequestMeta returns a copy of ctx carrying m.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

func metaFrom(ctx context.Context) (RequestMeta, bool) {
	m, ok := ctx.Value(metaKey{}).(RequestMeta)
	return m, ok
}
