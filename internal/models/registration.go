package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the state of a student's claim on a seat.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationRejected  RegistrationStatus = "rejected"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// ParseAdminStatus parses a status a club admin may assign (cancelled is owner-only).
func ParseAdminStatus(s string) (RegistrationStatus, bool) {
	switch RegistrationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RegistrationPending:
		return RegistrationPending, true
	case RegistrationConfirmed:
		return RegistrationConfirmed, true
	case RegistrationRejected:
		return RegistrationRejected, true
	}
	return "", false
}

// HoldsSeat reports whether a registration in this status counts toward capacity.
func (s RegistrationStatus) HoldsSeat() bool {
	switch s {
	case RegistrationPending, RegistrationConfirmed:
		return true
	case RegistrationRejected, RegistrationCancelled:
		return false
	}
	return false
}

// Decided reports whether the status is an admin decision that only a reopen can undo.
func (s RegistrationStatus) Decided() bool {
	return s == RegistrationConfirmed || s == RegistrationRejected
}

// CanTransition reports whether an admin may move a registration from s to next.
// Leaving confirmed or rejected requires reopen. Cancelled registrations are only
// revived by the student registering again.
func (s RegistrationStatus) CanTransition(next RegistrationStatus, reopen bool) bool {
	if s == next {
		return true
	}
	switch s {
	case RegistrationPending:
		return next == RegistrationConfirmed || next == RegistrationRejected
	case RegistrationConfirmed, RegistrationRejected:
		return reopen && next != RegistrationCancelled
	case RegistrationCancelled:
		return false
	}
	return false
}

// Registration is a student's registration for an event.
type Registration struct {
	ID           uuid.UUID          `json:"id"`
	EventID      uuid.UUID          `json:"event_id"`
	UserID       uuid.UUID          `json:"user_id"`
	Status       RegistrationStatus `json:"status"`
	Attended     bool               `json:"attended"`
	RegisteredAt time.Time          `json:"registered_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// RegistrationRow is a registration joined with minimal user fields for rosters and exports.
type RegistrationRow struct {
	Registration
	UserName   string     `json:"user_name"`
	UserEmail  string     `json:"user_email"`
	CollegeID  string     `json:"college_id"`
	Department Department `json:"department"`
	Year       int        `json:"year"`
}

// RegistrationStats counts an event's registrations by status.
type RegistrationStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
	Attended  int `json:"attended"`
}

// MyRegistration is a student's registration with event summary.
type MyRegistration struct {
	Registration
	EventTitle  string      `json:"event_title"`
	EventDate   time.Time   `json:"event_date"`
	EventVenue  string      `json:"event_venue"`
	EventStatus EventStatus `json:"event_status"`
}
