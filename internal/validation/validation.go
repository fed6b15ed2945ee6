// Package validation wraps go-playground/validator with the request rules
// shared by the HTTP-facing services.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/storage/models"
)

// Validator checks request structs and reports failures as apperr.ErrValidation.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the custom tags registered:
//   - appt_status: one of the appointment statuses, case-insensitive
//   - category: one of the notification categories
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("appt_status", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(fl.Field().String()) {
		case models.StatusPending, models.StatusConfirmed, models.StatusInProgress,
			models.StatusCompleted, models.StatusCancelled:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.IsValidCategory(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates s. Field failures are joined into one readable message.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("%v", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gt", "gte":
		return fe.Field() + " must be greater than " + fe.Param()
	case "appt_status":
		return fe.Field() + " is not a known appointment status"
	case "category":
		return fe.Field() + " must be APPOINTMENT, PAYMENT or REMINDER"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
