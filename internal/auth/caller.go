package auth

import (
	"context"

	"github.com/servio/backend/internal/identity"
	"github.com/servio/backend/internal/storage/models"
)

// Caller is the authenticated principal of a request.
type Caller struct {
	Subject string
	Role    string
	Contact identity.Contact
}

// IsStaff reports whether the caller may manage every appointment.
func (c Caller) IsStaff() bool {
	return models.IsStaffRole(c.Role)
}

// Ref returns the caller reference used by the identity resolver.
func (c Caller) Ref() identity.CallerRef {
	return identity.CallerRef{Subject: c.Subject, Role: c.Role}
}

// CanAccess reports whether the caller may act on behalf of subject.
// Both sides are compared in canonical owner-key form.
func (c Caller) CanAccess(subject string) bool {
	if c.IsStaff() {
		return true
	}
	if c.Subject == "" {
		return false
	}
	return canonical(c.Subject) == canonical(subject)
}

// canonical returns the owner key for subject, or subject unchanged when it
// is not a valid identifier.
func canonical(subject string) string {
	owner, err := identity.ParseSubject(subject)
	if err != nil {
		return subject
	}
	return owner.Key()
}

type ctxKey struct{}

// WithCaller returns a context carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller stored in ctx, if any.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok
}
