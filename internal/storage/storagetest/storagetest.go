// Package storagetest opens migrated throwaway databases for tests.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/storage/models"
)

// NewDB returns a migrated database in a per-test temporary directory.
func NewDB(t testing.TB) *storage.DB {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "servio.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := storage.RunMigrations(context.Background(), db, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var accountSeq atomic.Int64

// CreateAccount inserts a local account with the given name and role.
func CreateAccount(t testing.TB, db *storage.DB, name, role string) *models.Account {
	t.Helper()

	acct := &models.Account{
		FullName: name,
		Email:    fmt.Sprintf("account%d@example.com", accountSeq.Add(1)),
		Role:     role,
	}
	if err := storage.NewAccountRepository(db).Create(context.Background(), acct); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}
