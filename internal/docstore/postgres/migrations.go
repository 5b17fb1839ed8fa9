package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
)

// migrationsFS embeds the schema migration files.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all embedded migrations in filename order. Statements are
// idempotent (IF NOT EXISTS), so running against an initialized database is
// safe.
func Migrate(ctx context.Context, pool *Pool) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
