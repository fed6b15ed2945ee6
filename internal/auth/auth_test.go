package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/auth"
	"github.com/servio/backend/internal/identity"
	"github.com/servio/backend/internal/storage/models"
	"github.com/servio/backend/internal/storage/storagetest"
	"github.com/servio/backend/internal/websocket"
)

func TestIssueAndParse(t *testing.T) {
	ti := auth.NewTokenIssuer("secret", time.Hour)

	tok, err := ti.Issue("42", models.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ti.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "42" || claims.Role != models.RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	ti := auth.NewTokenIssuer("secret", time.Hour)

	other, _ := auth.NewTokenIssuer("other", time.Hour).Issue("42", models.RoleUser)
	expired, _ := auth.NewTokenIssuer("secret", -time.Minute).Issue("42", models.RoleUser)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{"wrong secret": other, "expired": expired, "alg none": none, "garbage": "abc"} {
		if _, err := ti.Parse(tok); !errors.Is(err, auth.ErrBadToken) {
			t.Errorf("%s: expected ErrBadToken, got %v", name, err)
		}
	}
}

type fakeProvider struct {
	user *identity.ProviderUser
	err  error
}

func (f fakeProvider) Configured() bool { return true }

func (f fakeProvider) ValidateToken(context.Context, string) (*identity.ProviderUser, error) {
	return f.user, f.err
}

func TestAuthenticateLocalToken(t *testing.T) {
	ti := auth.NewTokenIssuer("secret", time.Hour)
	a := auth.NewAuthenticator(ti, nil, nil, zerolog.Nop())

	tok, _ := ti.Issue("7", models.RoleStaff)
	caller, err := a.Authenticate(context.Background(), tok)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if caller.Subject != "7" || !caller.IsStaff() {
		t.Fatalf("caller = %+v", caller)
	}

	if _, err := a.Authenticate(context.Background(), ""); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("empty token: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), "junk"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("junk token: %v", err)
	}
}

func TestAuthenticateFederatedTokenCreatesProfile(t *testing.T) {
	db := storagetest.NewDB(t)
	resolver := identity.NewResolver(db, zerolog.Nop())
	user := &identity.ProviderUser{ID: "6f1c2f4e-8a4b-4d43-9f5e-1c2b3a4d5e6f", Email: "fed@example.com"}
	user.UserMetadata.FullName = "Fed"

	a := auth.NewAuthenticator(auth.NewTokenIssuer("secret", time.Hour), fakeProvider{user: user}, resolver, zerolog.Nop())

	caller, err := a.Authenticate(context.Background(), "provider-token")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if caller.Subject != user.ID || caller.Role != models.RoleUser || caller.Contact.Name != "Fed" {
		t.Fatalf("caller = %+v", caller)
	}

	var name string
	if err := db.QueryRow(`SELECT full_name FROM profiles WHERE id = ?`, user.ID).Scan(&name); err != nil {
		t.Fatalf("profile lookup: %v", err)
	}
	if name != "Fed" {
		t.Fatalf("profile name = %q", name)
	}
}

func TestAuthenticateFederatedRejection(t *testing.T) {
	a := auth.NewAuthenticator(auth.NewTokenIssuer("secret", time.Hour),
		fakeProvider{err: apperr.ErrUnauthenticated}, nil, zerolog.Nop())

	if _, err := a.Authenticate(context.Background(), "provider-token"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCallerCanAccess(t *testing.T) {
	self := auth.Caller{Subject: "5", Role: models.RoleUser}
	staff := auth.Caller{Subject: "1", Role: models.RoleStaff}

	if !self.CanAccess("5") || self.CanAccess("6") {
		t.Error("user access should be limited to own subject")
	}
	if !staff.CanAccess("6") {
		t.Error("staff should access any subject")
	}
}

func TestAuthenticateCanonicalizesSubject(t *testing.T) {
	ti := auth.NewTokenIssuer("secret", time.Hour)
	a := auth.NewAuthenticator(ti, nil, nil, zerolog.Nop())

	tests := []struct {
		subject string
		want    string
	}{
		{"5", "5"},
		{"05", "5"},
		{"+5", "5"},
		{" 5 ", "5"},
		{"6F1C2F4E-8A4B-4D43-9F5E-1C2B3A4D5E6F", "6f1c2f4e-8a4b-4d43-9f5e-1c2b3a4d5e6f"},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			tok, err := ti.Issue(tt.subject, models.RoleUser)
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			caller, err := a.Authenticate(context.Background(), tok)
			if err != nil {
				t.Fatalf("authenticate: %v", err)
			}
			if caller.Subject != tt.want {
				t.Fatalf("subject = %q, want %q", caller.Subject, tt.want)
			}

			owner, _ := identity.ParseSubject(tt.subject)
			if !caller.CanAccess(owner.Key()) {
				t.Fatalf("caller %q denied own key %q", caller.Subject, owner.Key())
			}
			if !websocket.Authorize(websocket.AppointmentOwnerTopic(owner.Key()), caller.Subject, false) {
				t.Fatalf("caller %q denied own appointment topic", caller.Subject)
			}
		})
	}
}

func TestAuthenticateRejectsMalformedSubject(t *testing.T) {
	ti := auth.NewTokenIssuer("secret", time.Hour)
	a := auth.NewAuthenticator(ti, nil, nil, zerolog.Nop())

	for _, subject := range []string{"0", "-3", "alice"} {
		tok, _ := ti.Issue(subject, models.RoleUser)
		if _, err := a.Authenticate(context.Background(), tok); !errors.Is(err, apperr.ErrInvalidIdentity) {
			t.Errorf("subject %q: expected ErrInvalidIdentity, got %v", subject, err)
		}
	}
}

func TestCallerCanAccessComparesCanonicalKeys(t *testing.T) {
	self := auth.Caller{Subject: "5", Role: models.RoleUser}
	if !self.CanAccess("05") || !self.CanAccess("+5") {
		t.Error("equivalent account ids should match")
	}

	fed := auth.Caller{Subject: "6f1c2f4e-8a4b-4d43-9f5e-1c2b3a4d5e6f", Role: models.RoleUser}
	if !fed.CanAccess("6F1C2F4E-8A4B-4D43-9F5E-1C2B3A4D5E6F") {
		t.Error("profile ids should match regardless of case")
	}
	if fed.CanAccess("5") {
		t.Error("federated caller matched a local account")
	}
}
