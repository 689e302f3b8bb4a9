package clickhouse

import (
	"context"
	"fmt"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// NormalizedIntervalStore implements storage.NormalizedIntervalStore using ClickHouse.
// A measure's rows are written in a single batch: a batch is refused when
// any of its measures already has rows in the same result set.
type NormalizedIntervalStore struct {
	conn *Conn
}

// NewNormalizedIntervalStore creates a new NormalizedIntervalStore.
func NewNormalizedIntervalStore(conn *Conn) *NormalizedIntervalStore {
	return &NormalizedIntervalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.NormalizedIntervalStore = (*NormalizedIntervalStore)(nil)

const normalizedColumns = `
	data_version, config_hash, measure, site_id, interval_start, numerator, denominator,
	season, pandemic_period, reference_year, rate_per_1000,
	baseline_rolling, rr_rolling, rd_rolling,
	baseline_anchor, rr_anchor, rd_anchor
`

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *NormalizedIntervalStore) InsertBulk(ctx context.Context, rows []*domain.NormalizedInterval) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type rowKey struct {
		set domain.ResultSet
		key domain.IntervalKey
	}
	type measureKey struct {
		set     domain.ResultSet
		measure string
	}
	seen := make(map[rowKey]struct{}, len(rows))
	measures := make(map[measureKey]struct{})
	for _, r := range rows {
		if r == nil || r.Measure == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(r.ResultSet); err != nil {
			return err
		}
		k := rowKey{set: r.ResultSet, key: r.Key()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		measures[measureKey{set: r.ResultSet, measure: r.Measure}] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for m := range measures {
		n, err := s.conn.count(ctx,
			`SELECT count() FROM normalized_intervals WHERE data_version = ? AND config_hash = ? AND measure = ?`,
			m.set.DataVersion, m.set.ConfigHash, m.measure)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO normalized_intervals (`+normalizedColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.DataVersion, r.ConfigHash, r.Measure, r.SiteID, r.IntervalStart, r.Numerator, r.Denominator,
			string(r.Season), string(r.PandemicPeriod), int64(r.ReferenceYear), r.RatePer1000,
			r.BaselineRolling, r.RRRolling, r.RDRolling,
			r.BaselineAnchor, r.RRAnchor, r.RDAnchor,
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

// GetByMeasure retrieves the set's rows for one measure ordered by (site_id, interval_start).
func (s *NormalizedIntervalStore) GetByMeasure(ctx context.Context, set domain.ResultSet, measure string) ([]*domain.NormalizedInterval, error) {
	query := `
		SELECT ` + normalizedColumns + `
		FROM normalized_intervals FINAL
		WHERE data_version = ? AND config_hash = ? AND measure = ?
		ORDER BY site_id ASC, interval_start ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash, measure)
	if err != nil {
		return nil, fmt.Errorf("query by measure: %w", err)
	}
	defer rows.Close()

	return scanNormalized(rows)
}

// GetAll retrieves the set's rows ordered by (measure, site_id, interval_start).
func (s *NormalizedIntervalStore) GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.NormalizedInterval, error) {
	query := `
		SELECT ` + normalizedColumns + `
		FROM normalized_intervals FINAL
		WHERE data_version = ? AND config_hash = ?
		ORDER BY measure ASC, site_id ASC, interval_start ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanNormalized(rows)
}

func scanNormalized(rows chRows) ([]*domain.NormalizedInterval, error) {
	var result []*domain.NormalizedInterval

	for rows.Next() {
		var r domain.NormalizedInterval
		var season, pandemic string
		var refYear int64
		err := rows.Scan(
			&r.DataVersion, &r.ConfigHash, &r.Measure, &r.SiteID, &r.IntervalStart, &r.Numerator, &r.Denominator,
			&season, &pandemic, &refYear, &r.RatePer1000,
			&r.BaselineRolling, &r.RRRolling, &r.RDRolling,
			&r.BaselineAnchor, &r.RRAnchor, &r.RDAnchor,
		)
		if err != nil {
			return nil, fmt.Errorf("scan normalized row: %w", err)
		}
		r.IntervalStart = r.IntervalStart.UTC()
		r.Season = domain.Season(season)
		r.PandemicPeriod = domain.PandemicPeriod(pandemic)
		r.ReferenceYear = int(refYear)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate normalized rows: %w", err)
	}
	return result, nil
}
