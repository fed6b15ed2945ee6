package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/identity"
	"github.com/servio/backend/internal/storage/models"
)

// TokenValidator checks federated access tokens with the identity provider.
type TokenValidator interface {
	Configured() bool
	ValidateToken(ctx context.Context, accessToken string) (*identity.ProviderUser, error)
}

// Authenticator turns bearer tokens into callers. Locally signed session
// tokens are verified in process; anything else is sent to the identity
// provider when one is configured.
type Authenticator struct {
	tokens   *TokenIssuer
	provider TokenValidator
	resolver *identity.Resolver
	logger   zerolog.Logger
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(tokens *TokenIssuer, provider TokenValidator, resolver *identity.Resolver, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		provider: provider,
		resolver: resolver,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Authenticate verifies a raw bearer token.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (Caller, error) {
	if raw == "" {
		return Caller{}, fmt.Errorf("missing token: %w", apperr.ErrUnauthenticated)
	}

	claims, err := a.tokens.Parse(raw)
	if err == nil {
		owner, perr := identity.ParseSubject(claims.Subject)
		if perr != nil {
			return Caller{}, fmt.Errorf("token subject %q: %w", claims.Subject, apperr.ErrInvalidIdentity)
		}
		// Ownership checks compare against the canonical owner key.
		return Caller{Subject: owner.Key(), Role: claims.Role}, nil
	}
	if a.provider == nil || !a.provider.Configured() {
		return Caller{}, unauthenticated(err)
	}

	user, perr := a.provider.ValidateToken(ctx, raw)
	if perr != nil {
		if !errors.Is(perr, apperr.ErrUnauthenticated) {
			a.logger.Warn().Err(perr).Msg("identity provider validation failed")
		}
		return Caller{}, unauthenticated(perr)
	}

	id, perr := uuid.Parse(user.ID)
	if perr != nil {
		return Caller{}, fmt.Errorf("provider user id %q: %w", user.ID, apperr.ErrInvalidIdentity)
	}

	contact := user.Contact()
	profile, perr := a.resolver.EnsureProfile(ctx, id, models.RoleUser, contact)
	if perr != nil {
		return Caller{}, perr
	}

	return Caller{Subject: id.String(), Role: profile.Role, Contact: contact}, nil
}
