package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// IntervalCountStore implements storage.IntervalCountStore using PostgreSQL.
type IntervalCountStore struct {
	pool *Pool
}

// NewIntervalCountStore creates a new IntervalCountStore.
func NewIntervalCountStore(pool *Pool) *IntervalCountStore {
	return &IntervalCountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IntervalCountStore = (*IntervalCountStore)(nil)

var intervalCountColumns = []string{"measure", "site_id", "interval_start", "numerator", "denominator"}

// InsertBulk adds multiple rows atomically using COPY. Fails entire batch on any duplicate.
func (s *IntervalCountStore) InsertBulk(ctx context.Context, rows []*domain.IntervalCount) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r == nil || r.Measure == "" || r.Denominator <= 0 || r.Numerator < 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{r.Measure, r.SiteID, r.IntervalStart, r.Numerator, r.Denominator}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"interval_counts"}, intervalCountColumns, source); err != nil {
		return mapError(err, "copy interval counts")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll retrieves all rows ordered by (measure, site_id, interval_start).
func (s *IntervalCountStore) GetAll(ctx context.Context) ([]*domain.IntervalCount, error) {
	query := `
		SELECT measure, site_id, interval_start, numerator, denominator
		FROM interval_counts
		ORDER BY measure ASC, site_id ASC, interval_start ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all interval counts: %w", err)
	}
	defer rows.Close()

	return scanIntervalCounts(rows)
}

// GetByMeasure retrieves rows for one measure ordered by (site_id, interval_start).
func (s *IntervalCountStore) GetByMeasure(ctx context.Context, measure string) ([]*domain.IntervalCount, error) {
	query := `
		SELECT measure, site_id, interval_start, numerator, denominator
		FROM interval_counts
		WHERE measure = $1
		ORDER BY site_id ASC, interval_start ASC
	`

	rows, err := s.pool.Query(ctx, query, measure)
	if err != nil {
		return nil, fmt.Errorf("get interval counts by measure: %w", err)
	}
	defer rows.Close()

	return scanIntervalCounts(rows)
}

// Measures returns the distinct measures in ascending order.
func (s *IntervalCountStore) Measures(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT measure FROM interval_counts ORDER BY measure ASC`)
	if err != nil {
		return nil, fmt.Errorf("get measures: %w", err)
	}
	defer rows.Close()

	measures, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan measures: %w", err)
	}
	return measures, nil
}

func scanIntervalCounts(rows pgx.Rows) ([]*domain.IntervalCount, error) {
	var result []*domain.IntervalCount
	for rows.Next() {
		var r domain.IntervalCount
		if err := rows.Scan(&r.Measure, &r.SiteID, &r.IntervalStart, &r.Numerator, &r.Denominator); err != nil {
			return nil, fmt.Errorf("scan interval count: %w", err)
		}
		r.IntervalStart = r.IntervalStart.UTC()
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interval counts: %w", err)
	}
	return result, nil
}
