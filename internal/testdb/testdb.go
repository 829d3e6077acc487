// Package testdb provides a shared in-memory SQLite helper with the full
// pipeline schema applied, for service and API tests.
package testdb

import (
	"context"
	"testing"

	"github.com/trialpulse/trialpulse/infrastructure/persistence"
	"github.com/trialpulse/trialpulse/internal/database"
)

// New creates an in-memory SQLite database with all migrations applied.
// The database is closed when the test finishes.
func New(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewDatabase(ctx, "sqlite:///:memory:")
	if err != nil {
		t.Fatalf("testdb.New: open database: %v", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("testdb.New: auto migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
