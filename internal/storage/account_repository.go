package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/servio/backend/internal/storage/models"
)

// AccountRepository provides data access for local accounts.
type AccountRepository struct {
	BaseRepository
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new local account.
func (r *AccountRepository) Create(ctx context.Context, acct *models.Account) error {
	if acct.Role == "" {
		acct.Role = models.RoleUser
	}
	acct.CreatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO accounts (full_name, email, phone, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, acct.FullName, acct.Email, acct.Phone, acct.Role, acct.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading account id: %w", err)
	}
	acct.ID = id

	return nil
}

// GetByID retrieves an account by its ID. It returns nil when no row matches.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	acct := &models.Account{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, role, created_at
		FROM accounts WHERE id = ?
	`, id).Scan(&acct.ID, &acct.FullName, &acct.Email, &acct.Phone, &acct.Role, &acct.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	return acct, nil
}
