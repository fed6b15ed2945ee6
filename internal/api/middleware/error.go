// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/apperr"
)

// Response is the envelope around every successful API response.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrNotFound        = "not_found"
	ErrBadRequest      = "bad_request"
	ErrConflict        = "conflict"
	ErrInternalError   = "internal_error"
	ErrValidation      = "validation_error"
	ErrUnauthorized    = "unauthorized"
	ErrForbidden       = "forbidden"
	ErrTooManyRequests = "too_many_requests"
)

// WriteJSON writes data inside the success envelope.
func WriteJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: true, Message: message, Data: data})
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// WriteServiceError maps a service error to its HTTP status. Unclassified
// errors are logged and reported as a generic 500.
func WriteServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		WriteError(w, status, code, "An unexpected error occurred")
		return
	}
	WriteError(w, status, code, err.Error())
}

// Classify returns the HTTP status and error code for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, apperr.ErrSlotTaken):
		return http.StatusConflict, ErrConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, ErrValidation
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusBadRequest, ErrBadRequest
	case errors.Is(err, apperr.ErrInvalidIdentity), errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, ErrForbidden
	default:
		return http.StatusInternalServerError, ErrInternalError
	}
}

// Recovery is middleware that recovers from panics and returns a 500 error.
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")
					WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
