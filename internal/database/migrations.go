package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// execer is satisfied by both pgxpool.Pool (through DB) and *sql.DB.
type execer func(ctx context.Context, stmt string) error

// applyMigrations runs every embedded .sql file under dir in lexical order.
// Migrations are written to be idempotent.
func applyMigrations(ctx context.Context, fsys fs.FS, dir string, exec execer) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if err := exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
