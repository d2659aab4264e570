package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleStudent    Role = "student"
	RoleClubAdmin  Role = "club_admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole returns the Role for s, or false if s names no role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleClubAdmin:
		return RoleClubAdmin, true
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	}
	return "", false
}

// Department is the academic department a user belongs to.
type Department string

const (
	DeptCSE   Department = "CSE"
	DeptECE   Department = "ECE"
	DeptEEE   Department = "EEE"
	DeptMECH  Department = "MECH"
	DeptCIVIL Department = "CIVIL"
	DeptIT    Department = "IT"
	DeptOther Department = "OTHER"
)

// Departments lists every accepted department.
var Departments = []Department{DeptCSE, DeptECE, DeptEEE, DeptMECH, DeptCIVIL, DeptIT, DeptOther}

// ValidDepartment reports whether s is a known department (case-insensitive).
func ValidDepartment(s string) bool {
	up := Department(strings.ToUpper(strings.TrimSpace(s)))
	for _, d := range Departments {
		if d == up {
			return true
		}
	}
	return false
}

// UserStatus is the account state managed by super admins.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// ParseUserStatus returns the UserStatus for s, or false if unknown.
func ParseUserStatus(s string) (UserStatus, bool) {
	switch UserStatus(strings.ToLower(strings.TrimSpace(s))) {
	case UserStatusActive:
		return UserStatusActive, true
	case UserStatusInactive:
		return UserStatusInactive, true
	case UserStatusSuspended:
		return UserStatusSuspended, true
	}
	return "", false
}

// User represents a platform user.
type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	CollegeID       string     `json:"college_id"`
	Department      Department `json:"department"`
	Role            Role       `json:"role"`
	Status          UserStatus `json:"status"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Year            int        `json:"year"`
	Password        string     `json:"-"`
	EmailVerified   bool       `json:"email_verified"`
	OTPHash         string     `json:"-"`
	OTPExpiresAt    *time.Time `json:"-"`
	ClubName        string     `json:"club_name,omitempty"`
	ClubDescription string     `json:"club_description,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	CollegeID       string     `json:"college_id"`
	Department      Department `json:"department"`
	Role            Role       `json:"role"`
	Status          UserStatus `json:"status"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	Year            int        `json:"year,omitempty"`
	EmailVerified   bool       `json:"email_verified"`
	ClubName        string     `json:"club_name,omitempty"`
	ClubDescription string     `json:"club_description,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:              u.ID,
		Email:           u.Email,
		CollegeID:       u.CollegeID,
		Department:      u.Department,
		Role:            u.Role,
		Status:          u.Status,
		Name:            u.Name,
		Phone:           u.Phone,
		Year:            u.Year,
		EmailVerified:   u.EmailVerified,
		ClubName:        u.ClubName,
		ClubDescription: u.ClubDescription,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
}
