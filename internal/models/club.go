package models

import (
	"time"

	"github.com/google/uuid"
)

// Club is the public face of a club admin account.
type Club struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	AdminName       string     `json:"admin_name"`
	Department      Department `json:"department"`
	PublishedEvents int        `json:"published_events"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ClubStats extends Club with totals for super admins.
type ClubStats struct {
	Club
	AdminEmail       string     `json:"admin_email"`
	Status           UserStatus `json:"status"`
	TotalEvents      int        `json:"total_events"`
	Registrations    int        `json:"registrations"`
	AvgRegistrations float64    `json:"avg_registrations"`
}
