package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/campus-events/backend/internal/models"
)

const stampLayout = "2006-01-02 15:04"

// RegistrationHeader is the first row of a per-event registration export.
var RegistrationHeader = []string{"No", "Name", "Email", "College ID", "Department", "Year", "Status", "Registered At", "Attended"}

var (
	userHeader  = []string{"Name", "Email", "College ID", "Department", "Year", "Role", "Status", "Club", "Last Login", "Joined"}
	eventHeader = []string{"Title", "Club", "Category", "Status", "Date", "Time", "Venue", "Capacity", "Seats Remaining", "Registrations"}
	auditHeader = []string{"Time", "Action", "Actor", "Role", "Target Type", "Target ID", "Description"}
)

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(stampLayout)
}

func registrationRecord(n int, r models.RegistrationRow) []string {
	return []string{
		strconv.Itoa(n),
		r.UserName,
		r.UserEmail,
		r.CollegeID,
		string(r.Department),
		strconv.Itoa(r.Year),
		string(r.Status),
		stamp(r.RegisteredAt),
		yesNo(r.Attended),
	}
}

func userRecord(u models.User) []string {
	last := ""
	if u.LastLoginAt != nil {
		last = stamp(*u.LastLoginAt)
	}
	return []string{
		u.Name, u.Email, u.CollegeID, string(u.Department), strconv.Itoa(u.Year),
		string(u.Role), string(u.Status), u.ClubName, last, stamp(u.CreatedAt),
	}
}

func eventRecord(e models.Event, registrations int) []string {
	return []string{
		e.Title, e.ClubName, string(e.Category), string(e.Status), e.Date.Format("2006-01-02"), e.Time, e.Venue,
		strconv.Itoa(e.Capacity), strconv.Itoa(e.SeatsRemaining), strconv.Itoa(registrations),
	}
}

func auditRecord(l models.AuditLog) []string {
	return []string{
		stamp(l.CreatedAt), string(l.Action), l.ActorName, string(l.ActorRole),
		string(l.TargetType), l.TargetID, l.Description,
	}
}

// rowWriter counts data rows written after the header.
type rowWriter struct {
	w    *csv.Writer
	rows int
}

func newRowWriter(out io.Writer, header []string) (*rowWriter, error) {
	rw := &rowWriter{w: csv.NewWriter(out)}
	if err := rw.w.Write(header); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *rowWriter) write(rec []string) error {
	rw.rows++
	return rw.w.Write(rec)
}

func (rw *rowWriter) flush() error {
	rw.w.Flush()
	return rw.w.Error()
}
