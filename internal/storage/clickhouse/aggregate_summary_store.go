package clickhouse

import (
	"context"
	"fmt"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// AggregateSummaryStore implements storage.AggregateSummaryStore using ClickHouse.
type AggregateSummaryStore struct {
	conn *Conn
}

// NewAggregateSummaryStore creates a new AggregateSummaryStore.
func NewAggregateSummaryStore(conn *Conn) *AggregateSummaryStore {
	return &AggregateSummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AggregateSummaryStore = (*AggregateSummaryStore)(nil)

const aggregateColumns = `
	data_version, config_hash, measure, season, pandemic_period,
	sites_contributing, sites_zero_numerator, prop_sites_zero,
	pooled_numerator, pooled_denominator, pooled_rate,
	pooled_rr_rolling, pooled_rd_rolling, pooled_rr_anchor, pooled_rd_anchor,
	site_rr_rolling, site_rd_rolling, site_rr_anchor, site_rd_anchor,
	tests_defined, sites_significant, sites_significant_adj,
	prop_significant, prop_significant_adj
`

// InsertBulk adds multiple summaries atomically. Fails entire batch on any duplicate.
func (s *AggregateSummaryStore) InsertBulk(ctx context.Context, summaries []*domain.AggregateSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		set   domain.ResultSet
		group domain.GroupKey
	}
	seen := make(map[key]struct{}, len(summaries))
	for _, a := range summaries {
		if a == nil || a.Measure == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(a.ResultSet); err != nil {
			return err
		}
		k := key{set: a.ResultSet, group: domain.GroupKey{Measure: a.Measure, Season: a.Season, PandemicPeriod: a.PandemicPeriod}}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for k := range seen {
		n, err := s.conn.count(ctx, `
			SELECT count() FROM aggregate_summaries
			WHERE data_version = ? AND config_hash = ?
			  AND measure = ? AND season = ? AND pandemic_period = ?
		`, k.set.DataVersion, k.set.ConfigHash, k.group.Measure, string(k.group.Season), string(k.group.PandemicPeriod))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO aggregate_summaries (`+aggregateColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, a := range summaries {
		err = batch.Append(
			a.DataVersion, a.ConfigHash, a.Measure, string(a.Season), string(a.PandemicPeriod),
			int64(a.SitesContributing), int64(a.SitesZeroNumerator), a.PropSitesZero,
			a.PooledNumerator, a.PooledDenominator, a.PooledRate,
			a.PooledRRRolling, a.PooledRDRolling, a.PooledRRAnchor, a.PooledRDAnchor,
			a.SiteRRRolling, a.SiteRDRolling, a.SiteRRAnchor, a.SiteRDAnchor,
			int64(a.TestsDefined), int64(a.SitesSignificant), int64(a.SitesSignificantAdj),
			a.PropSignificant, a.PropSignificantAdj,
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

// GetByKey retrieves one summary. Returns ErrNotFound if not exists.
func (s *AggregateSummaryStore) GetByKey(ctx context.Context, set domain.ResultSet, group domain.GroupKey) (*domain.AggregateSummary, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM aggregate_summaries FINAL
		WHERE data_version = ? AND config_hash = ?
		  AND measure = ? AND season = ? AND pandemic_period = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash, group.Measure, string(group.Season), string(group.PandemicPeriod))
	if err != nil {
		return nil, fmt.Errorf("query by key: %w", err)
	}
	defer rows.Close()

	result, err := scanAggregates(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	return result[0], nil
}

// GetAll retrieves the set's summaries ordered by (measure, season, pandemic_period).
func (s *AggregateSummaryStore) GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.AggregateSummary, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM aggregate_summaries FINAL
		WHERE data_version = ? AND config_hash = ?
		ORDER BY measure ASC, season ASC, pandemic_period ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

func scanAggregates(rows chRows) ([]*domain.AggregateSummary, error) {
	var result []*domain.AggregateSummary

	for rows.Next() {
		var a domain.AggregateSummary
		var season, pandemic string
		var sites, sitesZero, tests, sig, sigAdj int64
		err := rows.Scan(
			&a.DataVersion, &a.ConfigHash, &a.Measure, &season, &pandemic,
			&sites, &sitesZero, &a.PropSitesZero,
			&a.PooledNumerator, &a.PooledDenominator, &a.PooledRate,
			&a.PooledRRRolling, &a.PooledRDRolling, &a.PooledRRAnchor, &a.PooledRDAnchor,
			&a.SiteRRRolling, &a.SiteRDRolling, &a.SiteRRAnchor, &a.SiteRDAnchor,
			&tests, &sig, &sigAdj,
			&a.PropSignificant, &a.PropSignificantAdj,
		)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		a.Season = domain.Season(season)
		a.PandemicPeriod = domain.PandemicPeriod(pandemic)
		a.SitesContributing = int(sites)
		a.SitesZeroNumerator = int(sitesZero)
		a.TestsDefined = int(tests)
		a.SitesSignificant = int(sig)
		a.SitesSignificantAdj = int(sigAdj)
		result = append(result, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}
	return result, nil
}
