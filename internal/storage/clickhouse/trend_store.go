package clickhouse

import (
	"context"
	"fmt"
	"time"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// TrendResultStore implements storage.TrendResultStore using ClickHouse.
// The measure-level fit is stored with per_site = 0 and site_id = 0.
type TrendResultStore struct {
	conn *Conn
}

// NewTrendResultStore creates a new TrendResultStore.
func NewTrendResultStore(conn *Conn) *TrendResultStore {
	return &TrendResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TrendResultStore = (*TrendResultStore)(nil)

const trendColumns = `
	data_version, config_hash, measure, per_site, site_id, points, first_week,
	rate_slope, rate_r2, rate_cv,
	rr_points, rr_slope, rr_r2, rr_cv
`

type trendKey struct {
	set     domain.ResultSet
	measure string
	perSite bool
	siteID  int64
}

func trendKeyOf(r *domain.TrendResult) trendKey {
	if r.SiteID == nil {
		return trendKey{set: r.ResultSet, measure: r.Measure}
	}
	return trendKey{set: r.ResultSet, measure: r.Measure, perSite: true, siteID: *r.SiteID}
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *TrendResultStore) InsertBulk(ctx context.Context, results []*domain.TrendResult) error {
	if len(results) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[trendKey]struct{}, len(results))
	firstWeeks := make([]time.Time, len(results))
	for i, r := range results {
		if r == nil || r.Measure == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(r.ResultSet); err != nil {
			return err
		}
		week, err := time.Parse(time.DateOnly, r.FirstWeek)
		if err != nil {
			return storage.ErrInvalidInput
		}
		firstWeeks[i] = week
		k := trendKeyOf(r)
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for k := range seen {
		n, err := s.conn.count(ctx, `
			SELECT count() FROM trend_results
			WHERE data_version = ? AND config_hash = ?
			  AND measure = ? AND per_site = ? AND site_id = ?
		`, k.set.DataVersion, k.set.ConfigHash, k.measure, boolToUInt8(k.perSite), k.siteID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO trend_results (`+trendColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, r := range results {
		k := trendKeyOf(r)
		err = batch.Append(
			r.DataVersion, r.ConfigHash, r.Measure, boolToUInt8(k.perSite), k.siteID, int64(r.Points), firstWeeks[i],
			r.RateSlope, r.RateR2, r.RateCV,
			int64(r.RRPoints), r.RRSlope, r.RRR2, r.RRCV,
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

// GetByMeasure retrieves the set's results for one measure, measure-level fit first.
func (s *TrendResultStore) GetByMeasure(ctx context.Context, set domain.ResultSet, measure string) ([]*domain.TrendResult, error) {
	query := `
		SELECT ` + trendColumns + `
		FROM trend_results FINAL
		WHERE data_version = ? AND config_hash = ? AND measure = ?
		ORDER BY per_site ASC, site_id ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash, measure)
	if err != nil {
		return nil, fmt.Errorf("query by measure: %w", err)
	}
	defer rows.Close()

	return scanTrends(rows)
}

// GetAll retrieves the set's results ordered by (measure, site_id), measure-level fits first.
func (s *TrendResultStore) GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.TrendResult, error) {
	query := `
		SELECT ` + trendColumns + `
		FROM trend_results FINAL
		WHERE data_version = ? AND config_hash = ?
		ORDER BY measure ASC, per_site ASC, site_id ASC
	`

	rows, err := s.conn.Query(ctx, query, set.DataVersion, set.ConfigHash)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanTrends(rows)
}

func scanTrends(rows chRows) ([]*domain.TrendResult, error) {
	var result []*domain.TrendResult

	for rows.Next() {
		var r domain.TrendResult
		var perSite uint8
		var siteID, points, rrPoints int64
		var firstWeek time.Time
		err := rows.Scan(
			&r.DataVersion, &r.ConfigHash, &r.Measure, &perSite, &siteID, &points, &firstWeek,
			&r.RateSlope, &r.RateR2, &r.RateCV,
			&rrPoints, &r.RRSlope, &r.RRR2, &r.RRCV,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		if perSite == 1 {
			id := siteID
			r.SiteID = &id
		}
		r.Points = int(points)
		r.RRPoints = int(rrPoints)
		r.FirstWeek = firstWeek.UTC().Format(time.DateOnly)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trend rows: %w", err)
	}
	return result, nil
}
