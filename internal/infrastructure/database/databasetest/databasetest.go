// Package databasetest provides migrated throwaway databases for tests.
package databasetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"banking/internal/infrastructure/database"
)

// Open returns a migrated SQLite database stored under t.TempDir().
func Open(t testing.TB) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "banking.db")
	if err := database.Migrate(database.SQLite, "sqlite://"+path, zap.NewNop()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	db, err := database.Open(context.Background(), database.SQLite, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
