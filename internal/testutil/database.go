// Package testutil provides test helpers for contact-sync packages: an
// in-memory registry database and identity fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	t          *testing.T
	Identities []model.Identity
}

// SetupTestDB creates a migrated in-memory database seeded with identities.
// Cleanup is registered on t.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.StandardRegistry()...)
func SetupTestDB(t *testing.T, seeds ...IdentitySeed) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}
	for _, seed := range seeds {
		identity, err := store.CreateIdentity(ctx, seed.Name, seed.Phone, seed.Attributes)
		if err != nil {
			t.Fatalf("failed to seed identity %q: %v", seed.Name, err)
		}
		db.Identities = append(db.Identities, *identity)
	}
	return db
}

// MustIdentity returns the seeded identity with the given name or fails the test.
func (db *TestDB) MustIdentity(name string) model.Identity {
	db.t.Helper()
	for _, id := range db.Identities {
		if id.Name == name {
			return id
		}
	}
	db.t.Fatalf("identity %q was not seeded", name)
	return model.Identity{}
}
