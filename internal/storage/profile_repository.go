package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/servio/backend/internal/storage/models"
)

// ProfileRepository provides data access for federated profiles.
type ProfileRepository struct {
	BaseRepository
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// InsertIfAbsent creates the profile unless a row with the same ID exists.
// It reports whether this call created the row.
func (r *ProfileRepository) InsertIfAbsent(ctx context.Context, p *models.Profile) (bool, error) {
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	p.CreatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO profiles (id, full_name, email, phone, role, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, p.ID.String(), p.FullName, p.Email, p.Phone, p.Role, p.IsAdmin, p.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting profile: %w", err)
	}

	n, _ := result.RowsAffected()
	return n == 1, nil
}

// BackfillContact sets the name of a profile whose name is empty, and fills
// email and phone only where they are empty too. Non-empty values are never
// overwritten. It reports whether a row changed.
func (r *ProfileRepository) BackfillContact(ctx context.Context, id uuid.UUID, name, email, phone string) (bool, error) {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE profiles SET
			full_name = ?,
			email = COALESCE(NULLIF(email, ''), ?),
			phone = COALESCE(NULLIF(phone, ''), ?)
		WHERE id = ? AND full_name = ''
	`, name, email, phone, id.String())
	if err != nil {
		return false, fmt.Errorf("backfilling profile: %w", err)
	}

	n, _ := result.RowsAffected()
	return n == 1, nil
}

// GetByID retrieves a profile by its ID. It returns nil when no row matches.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var (
		p   models.Profile
		raw string
	)

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, role, is_admin, created_at
		FROM profiles WHERE id = ?
	`, id.String()).Scan(&raw, &p.FullName, &p.Email, &p.Phone, &p.Role, &p.IsAdmin, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	if p.ID, err = uuid.Parse(raw); err != nil {
		return nil, fmt.Errorf("profile has malformed id %q: %w", raw, err)
	}

	return &p, nil
}
