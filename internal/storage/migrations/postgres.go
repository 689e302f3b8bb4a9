package migrations

import (
	"context"
	"fmt"
	"strings"

	"seasonality-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the interval_counts and runs schema.
// Every file uses IF NOT EXISTS, so reapplying is a no-op.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, f := range files {
		if strings.TrimSpace(f.SQL) == "" {
			continue
		}
		// pgx runs multi-statement text through the simple protocol.
		if _, err := pool.Exec(ctx, f.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
	}
	return nil
}
