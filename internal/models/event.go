package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

// ParseEventStatus returns the EventStatus for s, or false if unknown.
func ParseEventStatus(s string) (EventStatus, bool) {
	switch EventStatus(strings.ToLower(strings.TrimSpace(s))) {
	case EventStatusDraft:
		return EventStatusDraft, true
	case EventStatusPublished:
		return EventStatusPublished, true
	case EventStatusCancelled:
		return EventStatusCancelled, true
	}
	return "", false
}

// EventCategory classifies an event.
type EventCategory string

const (
	CategoryAcademic  EventCategory = "Academic"
	CategoryCultural  EventCategory = "Cultural"
	CategorySports    EventCategory = "Sports"
	CategoryTechnical EventCategory = "Technical"
	CategoryWorkshop  EventCategory = "Workshop"
	CategorySeminar   EventCategory = "Seminar"
)

// Categories lists every accepted event category.
var Categories = []EventCategory{
	CategoryAcademic, CategoryCultural, CategorySports,
	CategoryTechnical, CategoryWorkshop, CategorySeminar,
}

// ParseCategory matches s against known categories, ignoring case.
func ParseCategory(s string) (EventCategory, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Event is a club's offering that students register for.
type Event struct {
	ID             uuid.UUID     `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Date           time.Time     `json:"date"`
	Time           string        `json:"time"`
	Venue          string        `json:"venue"`
	Capacity       int           `json:"capacity"`
	SeatsRemaining int           `json:"seats_remaining"`
	ClubID         uuid.UUID     `json:"club_id"`
	ClubName       string        `json:"club_name,omitempty"`
	Status         EventStatus   `json:"status"`
	Category       EventCategory `json:"category"`
	PosterURL      string        `json:"poster_url,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SeatsHeld is the number of seats taken by pending or confirmed registrations.
func (e *Event) SeatsHeld() int {
	return e.Capacity - e.SeatsRemaining
}

// IsOwnedBy reports whether userID is the event's owning club.
func (e *Event) IsOwnedBy(userID uuid.UUID) bool {
	return e.ClubID == userID
}
