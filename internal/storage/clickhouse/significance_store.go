package clickhouse

import (
	"context"
	"fmt"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// SignificanceResultStore implements storage.SignificanceResultStore using ClickHouse.
type SignificanceResultStore struct {
	conn *Conn
}

// NewSignificanceResultStore creates a new SignificanceResultStore.
func NewSignificanceResultStore(conn *Conn) *SignificanceResultStore {
	return &SignificanceResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignificanceResultStore = (*SignificanceResultStore)(nil)

const significanceColumns = `
	data_version, config_hash, measure, season, pandemic_period, site_id,
	target_numerator, target_denominator, target_intervals,
	reference_numerator, reference_denominator, reference_intervals,
	p_value, p_value_adjusted, significant, significant_adj
`

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *SignificanceResultStore) InsertBulk(ctx context.Context, results []*domain.SignificanceResult) error {
	if len(results) == 0 {
		return nil
	}

	type groupKey struct {
		set   domain.ResultSet
		group domain.GroupKey
	}
	type key struct {
		groupKey
		siteID int64
	}
	seen := make(map[key]struct{}, len(results))
	groups := make(map[groupKey]struct{})
	for _, r := range results {
		if r == nil || r.Measure == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(r.ResultSet); err != nil {
			return err
		}
		k := key{groupKey: groupKey{set: r.ResultSet, group: r.Group()}, siteID: r.SiteID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		groups[k.groupKey] = struct{}{}
	}

	// A correction group is written once per result set.
	for g := range groups {
		n, err := s.conn.count(ctx, `
			SELECT count() FROM significance_results
			WHERE data_version = ? AND config_hash = ?
			  AND measure = ? AND season = ? AND pandemic_period = ?
		`, g.set.DataVersion, g.set.ConfigHash, g.group.Measure, string(g.group.Season), string(g.group.PandemicPeriod))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO significance_results (`+significanceColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range results {
		err = batch.Append(
			r.DataVersion, r.ConfigHash, r.Measure, string(r.Season), string(r.PandemicPeriod), r.SiteID,
			r.TargetNumerator, r.TargetDenominator, int64(r.TargetIntervals),
			r.ReferenceNumerator, r.ReferenceDenominator, int64(r.ReferenceIntervals),
			r.PValue, r.PValueAdjusted, boolToUInt8(r.Significant), boolToUInt8(r.SignificantAdj),
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

// GetByGroup retrieves the set's results of one correction group ordered by site_id.
func (s *SignificanceResultStore) GetByGroup(ctx context.Context, set domain.ResultSet, group domain.GroupKey) ([]*domain.SignificanceResult, error) {
	query := `
		SELECT ` + significanceColumns + `
		FROM significance_results FINAL
		WHERE data_version = ? AND config_hash = ?
		  AND measure = ? AND season = ? AND pandemic_period = ?
		ORDER BY site_id ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash, group.Measure, string(group.Season), string(group.PandemicPeriod))
	if err != nil {
		return nil, fmt.Errorf("query by group: %w", err)
	}
	defer rows.Close()

	return scanSignificance(rows)
}

// GetAll retrieves the set's results ordered by (measure, season, pandemic_period, site_id).
func (s *SignificanceResultStore) GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.SignificanceResult, error) {
	query := `
		SELECT ` + significanceColumns + `
		FROM significance_results FINAL
		WHERE data_version = ? AND config_hash = ?
		ORDER BY measure ASC, season ASC, pandemic_period ASC, site_id ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanSignificance(rows)
}

func scanSignificance(rows chRows) ([]*domain.SignificanceResult, error) {
	var result []*domain.SignificanceResult

	for rows.Next() {
		var r domain.SignificanceResult
		var season, pandemic string
		var targetIntervals, referenceIntervals int64
		var significant, significantAdj uint8
		err := rows.Scan(
			&r.DataVersion, &r.ConfigHash, &r.Measure, &season, &pandemic, &r.SiteID,
			&r.TargetNumerator, &r.TargetDenominator, &targetIntervals,
			&r.ReferenceNumerator, &r.ReferenceDenominator, &referenceIntervals,
			&r.PValue, &r.PValueAdjusted, &significant, &significantAdj,
		)
		if err != nil {
			return nil, fmt.Errorf("scan significance row: %w", err)
		}
		r.Season = domain.Season(season)
		r.PandemicPeriod = domain.PandemicPeriod(pandemic)
		r.TargetIntervals = int(targetIntervals)
		r.ReferenceIntervals = int(referenceIntervals)
		r.Significant = significant == 1
		r.SignificantAdj = significantAdj == 1
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate significance rows: %w", err)
	}
	return result, nil
}
