package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SnapshotType is the reporting period of an analytics snapshot.
type SnapshotType string

const (
	SnapshotDaily   SnapshotType = "DAILY"
	SnapshotWeekly  SnapshotType = "WEEKLY"
	SnapshotMonthly SnapshotType = "MONTHLY"
)

// ParseSnapshotType accepts DAILY, WEEKLY or MONTHLY in any case.
func ParseSnapshotType(s string) (SnapshotType, bool) {
	switch SnapshotType(strings.ToUpper(strings.TrimSpace(s))) {
	case SnapshotDaily:
		return SnapshotDaily, true
	case SnapshotWeekly:
		return SnapshotWeekly, true
	case SnapshotMonthly:
		return SnapshotMonthly, true
	}
	return "", false
}

// Period returns the window ending at end covered by a snapshot of this type.
func (t SnapshotType) Period(end time.Time) (time.Time, time.Time) {
	switch t {
	case SnapshotWeekly:
		return end.AddDate(0, 0, -7), end
	case SnapshotMonthly:
		return end.AddDate(0, -1, 0), end
	case SnapshotDaily:
		return end.AddDate(0, 0, -1), end
	}
	return end.AddDate(0, 0, -1), end
}

// AnalyticsSnapshot is a stored point-in-time copy of dashboard counters.
type AnalyticsSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	Type        SnapshotType    `json:"snapshot_type"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Data        json.RawMessage `json:"data"`
	GeneratedBy *uuid.UUID      `json:"generated_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
