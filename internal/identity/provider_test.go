package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/identity"
)

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"6f1c2f4e-8a4b-4d43-9f5e-1c2b3a4d5e6f","email":"fed@example.com","user_metadata":{"full_name":"Fed User","phone":"555-0101"}}`))
		case "Bearer noid":
			w.Write([]byte(`{"email":"fed@example.com"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	client := identity.NewProviderClient(identity.ProviderConfig{BaseURL: srv.URL + "/", APIKey: "anon-key"})

	user, err := client.ValidateToken(context.Background(), "good")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.ID != "6f1c2f4e-8a4b-4d43-9f5e-1c2b3a4d5e6f" {
		t.Errorf("id = %q", user.ID)
	}
	if c := user.Contact(); c.Name != "Fed User" || c.Email != "fed@example.com" || c.Phone != "555-0101" {
		t.Errorf("contact = %+v", c)
	}

	for _, token := range []string{"bad", "noid"} {
		if _, err := client.ValidateToken(context.Background(), token); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Errorf("token %q: expected ErrUnauthenticated, got %v", token, err)
		}
	}
}

func TestValidateTokenUnconfigured(t *testing.T) {
	client := identity.NewProviderClient(identity.ProviderConfig{})

	if _, err := client.ValidateToken(context.Background(), "anything"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
