package models

import (
	"time"
)

// Notification is a user-facing message created by the system.
type Notification struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification categories
const (
	CategoryAppointment = "APPOINTMENT"
	CategoryPayment     = "PAYMENT"
	CategoryReminder    = "REMINDER"
)

// IsValidCategory returns true for the fixed set of notification categories.
func IsValidCategory(c string) bool {
	switch c {
	case CategoryAppointment, CategoryPayment, CategoryReminder:
		return true
	}
	return false
}
