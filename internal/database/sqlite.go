package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourusername/race-edge/internal/database/migrations"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

// SQLitePragmas are applied to every SQLite connection opened by OpenSQLite
var SQLitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// OpenSQLite opens the history database file at path, creating parent
// directories as needed. ":memory:" opens a private in-memory database
// pinned to a single connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// each connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, p := range SQLitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

// MigrateSQLite applies the embedded SQLite schema
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return applyMigrations(ctx, migrations.SQLiteFS, "sqlite", func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}

// IsSQLiteConstraintError checks if err is a UNIQUE constraint failure
func IsSQLiteConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
