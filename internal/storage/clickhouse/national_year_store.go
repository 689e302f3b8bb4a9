package clickhouse

import (
	"context"
	"fmt"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// NationalYearStore implements storage.NationalYearStore using ClickHouse.
type NationalYearStore struct {
	conn *Conn
}

// NewNationalYearStore creates a new NationalYearStore.
func NewNationalYearStore(conn *Conn) *NationalYearStore {
	return &NationalYearStore{conn: conn}
}

// Compile-time interface check.
var _ storage.NationalYearStore = (*NationalYearStore)(nil)

const nationalYearColumns = `
	data_version, config_hash, measure, year, numerator, list_size, sites, sites_zero,
	rate_per_1000, prop_sites_zero
`

// InsertBulk adds multiple summaries atomically. Fails entire batch on any duplicate.
func (s *NationalYearStore) InsertBulk(ctx context.Context, summaries []*domain.NationalYearSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	type key struct {
		set     domain.ResultSet
		measure string
		year    int
	}
	seen := make(map[key]struct{}, len(summaries))
	for _, y := range summaries {
		if y == nil || y.Measure == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(y.ResultSet); err != nil {
			return err
		}
		k := key{set: y.ResultSet, measure: y.Measure, year: y.Year}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for k := range seen {
		n, err := s.conn.count(ctx, `
			SELECT count() FROM national_year_summaries
			WHERE data_version = ? AND config_hash = ? AND measure = ? AND year = ?
		`, k.set.DataVersion, k.set.ConfigHash, k.measure, int64(k.year))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO national_year_summaries (`+nationalYearColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, y := range summaries {
		err = batch.Append(
			y.DataVersion, y.ConfigHash, y.Measure, int64(y.Year), y.Numerator, y.ListSize, int64(y.Sites), int64(y.SitesZero),
			y.RatePer1000, y.PropSitesZero,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMeasure retrieves the set's summaries for one measure ordered by year.
func (s *NationalYearStore) GetByMeasure(ctx context.Context, set domain.ResultSet, measure string) ([]*domain.NationalYearSummary, error) {
	query := `
		SELECT ` + nationalYearColumns + `
		FROM national_year_summaries FINAL
		WHERE data_version = ? AND config_hash = ? AND measure = ?
		ORDER BY year ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash, measure)
	if err != nil {
		return nil, fmt.Errorf("query by measure: %w", err)
	}
	defer rows.Close()

	return scanNationalYears(rows)
}

// GetAll retrieves the set's summaries ordered by (measure, year).
func (s *NationalYearStore) GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.NationalYearSummary, error) {
	query := `
		SELECT ` + nationalYearColumns + `
		FROM national_year_summaries FINAL
		WHERE data_version = ? AND config_hash = ?
		ORDER BY measure ASC, year ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanNationalYears(rows)
}

func scanNationalYears(rows chRows) ([]*domain.NationalYearSummary, error) {
	var result []*domain.NationalYearSummary

	for rows.Next() {
		var y domain.NationalYearSummary
		var year, sites, sitesZero int64
		err := rows.Scan(
			&y.DataVersion, &y.ConfigHash, &y.Measure, &year, &y.Numerator, &y.ListSize, &sites, &sitesZero,
			&y.RatePer1000, &y.PropSitesZero,
		)
		if err != nil {
			return nil, fmt.Errorf("scan national year row: %w", err)
		}
		y.Year = int(year)
		y.Sites = int(sites)
		y.SitesZero = int(sitesZero)
		result = append(result, &y)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate national year rows: %w", err)
	}
	return result, nil
}
