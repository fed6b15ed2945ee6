package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/servio/backend/internal/auth"
)

// Authenticator resolves a bearer token to a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (auth.Caller, error)
}

// BearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on WebSocket handshakes, so the token query parameter
// is accepted as well.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// RequireAuth rejects requests without a valid token and stores the caller
// in the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := a.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				status, code := Classify(err)
				if status == http.StatusInternalServerError {
					WriteError(w, status, code, "An unexpected error occurred")
					return
				}
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

// OptionalAuth stores the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := BearerToken(r); token != "" {
				if caller, err := a.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(auth.WithCaller(r.Context(), caller))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
