package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Appointment is a booked service visit.
type Appointment struct {
	ID              int64               `json:"id"`
	Owner           Owner               `json:"owner"`
	OwnerName       string              `json:"owner_name,omitempty"`
	OwnerEmail      string              `json:"owner_email,omitempty"`
	VehicleID       *int64              `json:"vehicle_id,omitempty"`
	ServiceType     string              `json:"service_type"`
	AppointmentDate time.Time           `json:"appointment_date"`
	Status          string              `json:"status"`
	Location        string              `json:"location"`
	Notes           string              `json:"notes"`
	EstimatedCost   decimal.NullDecimal `json:"estimated_cost"`
	ActualCost      decimal.NullDecimal `json:"actual_cost"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Appointment status constants
const (
	StatusPending    = "PENDING"
	StatusConfirmed  = "CONFIRMED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Appointment lifecycle event kinds
const (
	EventCreated   = "CREATED"
	EventUpdated   = "UPDATED"
	EventCancelled = "CANCELLED"
	EventDeleted   = "DELETED"
)

// IsTerminal returns true for statuses that admit no further transition.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// ReminderKind identifies which reminder window delivered a reminder.
type ReminderKind string

// Reminder window kinds
const (
	ReminderDayAhead  ReminderKind = "day_ahead"
	ReminderHourAhead ReminderKind = "hour_ahead"
)
