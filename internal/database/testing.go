package database

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

// SetupTestSQLite opens a migrated in-memory SQLite database that is closed
// when the test finishes
func SetupTestSQLite(t testing.TB) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test sqlite database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})

	if err := MigrateSQLite(ctx, db); err != nil {
		t.Fatalf("failed to migrate test sqlite database: %v", err)
	}

	return db
}
