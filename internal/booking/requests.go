package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/identity"
)

// CreateRequest is the body of a booking request.
type CreateRequest struct {
	VehicleID       *int64              `json:"vehicle_id" validate:"omitempty,gt=0"`
	ServiceType     string              `json:"service_type" validate:"required,max=100"`
	AppointmentDate string              `json:"appointment_date" validate:"required"`
	Location        string              `json:"location" validate:"max=200"`
	Notes           string              `json:"notes" validate:"max=2000"`
	EstimatedCost   decimal.NullDecimal `json:"estimated_cost"`

	CustomerName  string `json:"customer_name" validate:"max=200"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone string `json:"customer_phone" validate:"max=40"`
}

// Contact returns the customer contact details carried by the request.
func (r CreateRequest) Contact() identity.Contact {
	return identity.Contact{Name: r.CustomerName, Email: r.CustomerEmail, Phone: r.CustomerPhone}
}

// UpdateRequest is a staff edit of an appointment. Nil fields are left unchanged.
type UpdateRequest struct {
	Status     *string             `json:"status" validate:"omitempty,appt_status"`
	Notes      *string             `json:"notes" validate:"omitempty,max=2000"`
	ActualCost decimal.NullDecimal `json:"actual_cost"`
}

// appointmentLayouts are the accepted appointment_date formats. Layouts
// without an offset are read in the shop time zone.
var appointmentLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseAppointmentTime parses an appointment timestamp. RFC 3339 values keep
// their offset; naive values are interpreted in loc.
func ParseAppointmentTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range appointmentLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("appointment_date %q is not a valid date-time", s)
}

func checkCost(name string, c decimal.NullDecimal) error {
	if c.Valid && c.Decimal.IsNegative() {
		return apperr.Validation("%s must not be negative", name)
	}
	return nil
}
