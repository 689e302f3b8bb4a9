package ingestion

import (
	"context"
	"fmt"

	"seasonality-lab/internal/storage/postgres"
)

// PostgresSource reads the upstream landing table interval_counts_raw.
// Columns are read as text so the Loader applies the same schema checks as for CSV input.
type PostgresSource struct {
	pool *postgres.Pool
}

// NewPostgresSource creates a source over the given pool.
func NewPostgresSource(pool *postgres.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Name identifies the source.
func (s *PostgresSource) Name() string {
	return "postgres:interval_counts_raw"
}

// Fetch returns every landing row. Line holds the 1-based row ordinal.
func (s *PostgresSource) Fetch(ctx context.Context) ([]RawRow, error) {
	query := `
		SELECT
			COALESCE(measure, ''),
			COALESCE(site_id::text, ''),
			COALESCE(to_char(interval_start, 'YYYY-MM-DD'), ''),
			COALESCE(numerator::text, ''),
			COALESCE(denominator::text, '')
		FROM interval_counts_raw
		ORDER BY measure, site_id, interval_start
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query interval_counts_raw: %w", err)
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		r := RawRow{Line: len(out) + 1}
		if err := rows.Scan(&r.Measure, &r.SiteID, &r.IntervalStart, &r.Numerator, &r.Denominator); err != nil {
			return nil, fmt.Errorf("scan raw interval row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw interval rows: %w", err)
	}
	return out, nil
}
