package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a local account owned and authenticated by this system.
type Account struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile mirrors a user of the external identity provider.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Roles
const (
	RoleUser  = "USER"
	RoleStaff = "STAFF"
	RoleAdmin = "ADMIN"
)

// IsStaffRole returns true for roles allowed to manage every appointment.
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}
