package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/apperr"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/models"
)

// ErrArchiveDisabled is returned when an archived report is requested without S3 configured.
var ErrArchiveDisabled = errors.New("report archiving is not configured")

// Kind names a system report.
type Kind string

const (
	KindUsers     Kind = "users"
	KindEvents    Kind = "events"
	KindAuditLogs Kind = "audit-logs"
	KindSummary   Kind = "summary"
)

// ParseKind accepts a known report kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindUsers, KindEvents, KindAuditLogs, KindSummary:
		return k, true
	}
	return "", false
}

// RosterSource streams an event's non-cancelled registrations. *registrations.Repository satisfies it.
type RosterSource interface {
	EachForEvent(ctx context.Context, eventID uuid.UUID, fn func(models.RegistrationRow) error) error
}

// EventSource loads and streams events. *events.Repository satisfies it.
type EventSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Each(ctx context.Context, fn func(e models.Event, registrations int) error) error
}

// UserSource streams every user. *users.Repository satisfies it.
type UserSource interface {
	Each(ctx context.Context, fn func(models.User) error) error
}

// AuditSource streams the audit trail. *audit.Repository satisfies it.
type AuditSource interface {
	Each(ctx context.Context, fn func(models.AuditLog) error) error
}

// Summarizer renders dashboard counters as rows. *analytics.Service satisfies it.
type Summarizer interface {
	SummaryRows(ctx context.Context) ([][]string, error)
}

// Archiver uploads a report and returns its key and a download URL. *storage.S3 satisfies it.
type Archiver interface {
	ArchiveReport(ctx context.Context, kind string, body io.Reader) (key, url string, err error)
}

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Sources bundles the read models reports are built from.
type Sources struct {
	Roster  RosterSource
	Events  EventSource
	Users   UserSource
	Audit   AuditSource
	Summary Summarizer
}

// File is a rendered CSV.
type File struct {
	Name string
	Body []byte
	Rows int
}

// Archived is a report stored in object storage.
type Archived struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

// Service renders CSV exports and system reports.
type Service struct {
	src     Sources
	archive Archiver
	audit   Auditor
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a reports service. archive may be nil.
func NewService(src Sources, archive Archiver, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{src: src, archive: archive, audit: auditor, logger: logger, now: time.Now}
}

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	if s == "" {
		return "event"
	}
	return s
}

// EventRegistrations exports an event's registrations. Only the owning club admin or a super admin may export.
func (s *Service) EventRegistrations(ctx context.Context, actor authz.Identity, eventID uuid.UUID) (*File, error) {
	ev, err := s.src.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !authz.SeesEvent(actor, ev) {
		return nil, apperr.NotFound("event")
	}
	if err := authz.Require(actor, authz.ManageRegistration, authz.Owned(ev.ClubID)); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	rw, err := newRowWriter(&buf, RegistrationHeader)
	if err != nil {
		return nil, err
	}
	err = s.src.Roster.EachForEvent(ctx, eventID, func(r models.RegistrationRow) error {
		return rw.write(registrationRecord(rw.rows+1, r))
	})
	if err != nil {
		return nil, fmt.Errorf("export registrations: %w", err)
	}
	if rw.rows == 0 {
		return nil, apperr.Validation("no registrations to export")
	}
	if err := rw.flush(); err != nil {
		return nil, err
	}
	f := &File{
		Name: fmt.Sprintf("%s-registrations-%s.csv", slug(ev.Title), s.now().UTC().Format("20060102")),
		Body: buf.Bytes(),
		Rows: rw.rows,
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditExportGenerated,
		Actor:       actor,
		TargetType:  models.TargetEvent,
		TargetID:    ev.ID.String(),
		Description: fmt.Sprintf("exported %d registrations for %q", f.Rows, ev.Title),
		Metadata:    map[string]any{"rows": f.Rows, "format": "csv"},
	})
	return f, nil
}

func (s *Service) render(ctx context.Context, kind Kind, out io.Writer) (int, error) {
	switch kind {
	case KindUsers:
		rw, err := newRowWriter(out, userHeader)
		if err != nil {
			return 0, err
		}
		if err := s.src.Users.Each(ctx, func(u models.User) error { return rw.write(userRecord(u)) }); err != nil {
			return 0, err
		}
		return rw.rows, rw.flush()
	case KindEvents:
		rw, err := newRowWriter(out, eventHeader)
		if err != nil {
			return 0, err
		}
		err = s.src.Events.Each(ctx, func(e models.Event, n int) error { return rw.write(eventRecord(e, n)) })
		if err != nil {
			return 0, err
		}
		return rw.rows, rw.flush()
	case KindAuditLogs:
		rw, err := newRowWriter(out, auditHeader)
		if err != nil {
			return 0, err
		}
		if err := s.src.Audit.Each(ctx, func(l models.AuditLog) error { return rw.write(auditRecord(l)) }); err != nil {
			return 0, err
		}
		return rw.rows, rw.flush()
	case KindSummary:
		rows, err := s.src.Summary.SummaryRows(ctx)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, nil
		}
		rw, err := newRowWriter(out, rows[0])
		if err != nil {
			return 0, err
		}
		for _, r := range rows[1:] {
			if err := rw.write(r); err != nil {
				return 0, err
			}
		}
		return rw.rows, rw.flush()
	}
	return 0, apperr.Validation("unknown report type %q", kind)
}

func (s *Service) build(ctx context.Context, actor authz.Identity, kind string) (Kind, *File, error) {
	if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
		return "", nil, err
	}
	k, ok := ParseKind(kind)
	if !ok {
		return "", nil, apperr.Validation("report type must be users, events, audit-logs or summary")
	}
	var buf bytes.Buffer
	n, err := s.render(ctx, k, &buf)
	if err != nil {
		return "", nil, fmt.Errorf("render %s report: %w", k, err)
	}
	return k, &File{
		Name: fmt.Sprintf("%s-report-%s.csv", k, s.now().UTC().Format("20060102-150405")),
		Body: buf.Bytes(),
		Rows: n,
	}, nil
}

func (s *Service) downloaded(ctx context.Context, actor authz.Identity, k Kind, rows int, archived string) {
	meta := map[string]any{"rows": rows}
	if archived != "" {
		meta["archive_key"] = archived
	}
	s.audit.Record(ctx, audit.Entry{
		Action:      models.AuditReportDownloaded,
		Actor:       actor,
		TargetType:  models.TargetReport,
		TargetID:    string(k),
		Description: fmt.Sprintf("downloaded %s report", k),
		Metadata:    meta,
	})
}

// System renders a super-admin report for direct download.
func (s *Service) System(ctx context.Context, actor authz.Identity, kind string) (*File, error) {
	k, f, err := s.build(ctx, actor, kind)
	if err != nil {
		return nil, err
	}
	s.downloaded(ctx, actor, k, f.Rows, "")
	return f, nil
}

// Archive renders a super-admin report, stores it in the reports bucket and returns a presigned URL.
func (s *Service) Archive(ctx context.Context, actor authz.Identity, kind string) (*Archived, error) {
	if s.archive == nil {
		// Checked after the role so callers without access still see 403.
		if err := authz.Require(actor, authz.ViewAnalytics, authz.Resource{}); err != nil {
			return nil, err
		}
		return nil, ErrArchiveDisabled
	}
	k, f, err := s.build(ctx, actor, kind)
	if err != nil {
		return nil, err
	}
	key, url, err := s.archive.ArchiveReport(ctx, string(k), bytes.NewReader(f.Body))
	if err != nil {
		return nil, fmt.Errorf("archive %s report: %w", k, err)
	}
	s.logger.Info("report archived", zap.String("kind", string(k)), zap.String("key", key), zap.Int("rows", f.Rows))
	s.downloaded(ctx, actor, k, f.Rows, key)
	return &Archived{Key: key, URL: url, Rows: f.Rows}, nil
}
