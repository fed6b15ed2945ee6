// Package identity maps a caller from either identity scheme to an
// appointment owner, creating federated profiles on first sight.
package identity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/storage/models"
)

// CallerRef identifies an authenticated caller by token subject and role.
type CallerRef struct {
	Subject string
	Role    string
}

// Contact carries the optional contact details supplied with a request.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// ParseSubject classifies a subject string. A positive base-10 integer is a
// local account; a UUID is a federated profile; anything else is invalid.
func ParseSubject(subject string) (models.Owner, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return models.Owner{}, fmt.Errorf("empty subject: %w", apperr.ErrInvalidIdentity)
	}

	if id, err := strconv.ParseInt(subject, 10, 64); err == nil {
		if id <= 0 {
			return models.Owner{}, fmt.Errorf("subject %q: %w", subject, apperr.ErrInvalidIdentity)
		}
		return models.LocalOwner(id), nil
	}

	if id, err := uuid.Parse(subject); err == nil {
		return models.FederatedOwner(id), nil
	}

	return models.Owner{}, fmt.Errorf("subject %q: %w", subject, apperr.ErrInvalidIdentity)
}

// Resolver turns callers into owners.
type Resolver struct {
	accounts *storage.AccountRepository
	profiles *storage.ProfileRepository
	logger   zerolog.Logger
}

// NewResolver creates a new identity resolver.
func NewResolver(db *storage.DB, logger zerolog.Logger) *Resolver {
	return &Resolver{
		accounts: storage.NewAccountRepository(db),
		profiles: storage.NewProfileRepository(db),
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

// Resolve returns the owner for a caller. Local subjects must name an
// existing account. Federated subjects get a profile on first use, and an
// unnamed profile has its empty contact fields filled from contact.
func (r *Resolver) Resolve(ctx context.Context, caller CallerRef, contact Contact) (models.Owner, error) {
	owner, err := ParseSubject(caller.Subject)
	if err != nil {
		return models.Owner{}, err
	}

	switch owner.Kind {
	case models.OwnerLocal:
		acct, err := r.accounts.GetByID(ctx, owner.AccountID)
		if err != nil {
			return models.Owner{}, err
		}
		if acct == nil {
			return models.Owner{}, fmt.Errorf("account %d: %w", owner.AccountID, apperr.ErrNotFound)
		}
		return owner, nil

	default:
		if _, err := r.EnsureProfile(ctx, owner.ProfileID, caller.Role, contact); err != nil {
			return models.Owner{}, err
		}
		return owner, nil
	}
}

// EnsureProfile returns the federated profile with the given id, creating it
// when absent. Concurrent first calls converge on one row.
func (r *Resolver) EnsureProfile(ctx context.Context, id uuid.UUID, role string, contact Contact) (*models.Profile, error) {
	p, err := r.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p == nil {
		role = normalizeRole(role)
		created, err := r.profiles.InsertIfAbsent(ctx, &models.Profile{
			ID:       id,
			FullName: contact.Name,
			Email:    contact.Email,
			Phone:    contact.Phone,
			Role:     role,
			IsAdmin:  role == models.RoleAdmin,
		})
		if err != nil {
			return nil, err
		}
		if created {
			r.logger.Info().Str("profile_id", id.String()).Str("role", role).Msg("created federated profile")
		}
		return r.reload(ctx, id)
	}

	if p.FullName == "" && contact.Name != "" {
		changed, err := r.profiles.BackfillContact(ctx, id, contact.Name, contact.Email, contact.Phone)
		if err != nil {
			return nil, err
		}
		if changed {
			r.logger.Debug().Str("profile_id", id.String()).Msg("backfilled profile contact")
		}
		return r.reload(ctx, id)
	}

	return p, nil
}

// Account returns the local account with the given id, or apperr.ErrNotFound.
func (r *Resolver) Account(ctx context.Context, id int64) (*models.Account, error) {
	acct, err := r.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("account %d: %w", id, apperr.ErrNotFound)
	}
	return acct, nil
}

func (r *Resolver) reload(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, err := r.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s vanished after upsert: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

func normalizeRole(role string) string {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case models.RoleAdmin:
		return models.RoleAdmin
	case models.RoleStaff:
		return models.RoleStaff
	default:
		return models.RoleUser
	}
}
