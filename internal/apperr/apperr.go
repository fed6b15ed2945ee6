// Package apperr defines the error taxonomy shared by the booking core.
// Services wrap these sentinels with context; the HTTP layer maps them to
// status codes with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an unknown id or identifier.
	ErrNotFound = errors.New("not found")

	// ErrSlotTaken reports that a non-cancelled appointment already holds
	// the requested timestamp.
	ErrSlotTaken = errors.New("time slot already booked")

	// ErrInvalidIdentity reports a caller reference that failed validation or
	// matches neither the local-account nor the federated-profile format.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrUnauthenticated reports a missing caller where one is required.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden reports a caller acting on another owner's data.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition reports a status change the state machine rejects.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation reports a malformed request.
	ErrValidation = errors.New("validation failed")
)

// Validation wraps ErrValidation with a human-readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
