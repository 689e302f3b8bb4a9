package storage

import (
	"context"

	"seasonality-lab/internal/domain"
)

// IntervalCountStore provides access to interval_counts storage (validated input rows).
type IntervalCountStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on duplicate
	// (measure, site_id, interval_start).
	InsertBulk(ctx context.Context, rows []*domain.IntervalCount) error

	// GetAll retrieves all rows ordered by (measure, site_id, interval_start) ASC.
	GetAll(ctx context.Context) ([]*domain.IntervalCount, error)

	// GetByMeasure retrieves rows for one measure ordered by (site_id, interval_start) ASC.
	GetByMeasure(ctx context.Context, measure string) ([]*domain.IntervalCount, error)

	// Measures returns the distinct measures, sorted.
	Measures(ctx context.Context) ([]string, error)
}

// Output stores are scoped by domain.ResultSet: every row carries the data
// version and config hash it was computed from, duplicate keys include the
// set, and reads return only the requested set. Rows with an empty set are
// rejected with ErrInvalidInput.

// BaselineStore provides access to baselines storage.
type BaselineStore interface {
	// InsertBulk adds multiple baselines atomically. Fails entire batch on duplicate
	// (result set, kind, measure, site_id, reference_year).
	InsertBulk(ctx context.Context, records []*domain.BaselineRecord) error

	// GetByKey retrieves one baseline. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, set domain.ResultSet, kind domain.BaselineKind, measure string, siteID int64, referenceYear int) (*domain.BaselineRecord, error)

	// GetAll retrieves the set's baselines ordered by (kind, measure, site_id, reference_year) ASC.
	GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.BaselineRecord, error)
}

// NormalizedIntervalStore provides access to normalized_intervals storage.
type NormalizedIntervalStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on duplicate
	// (result set, measure, site_id, interval_start).
	InsertBulk(ctx context.Context, rows []*domain.NormalizedInterval) error

	// GetByMeasure retrieves the set's rows for one measure ordered by (site_id, interval_start) ASC.
	GetByMeasure(ctx context.Context, set domain.ResultSet, measure string) ([]*domain.NormalizedInterval, error)

	// GetAll retrieves the set's rows ordered by (measure, site_id, interval_start) ASC.
	GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.NormalizedInterval, error)
}

// SignificanceResultStore provides access to significance_results storage.
type SignificanceResultStore interface {
	// InsertBulk adds multiple results atomically. Fails entire batch on duplicate
	// (result set, measure, season, pandemic_period, site_id).
	InsertBulk(ctx context.Context, results []*domain.SignificanceResult) error

	// GetByGroup retrieves the set's results for one group ordered by site_id ASC.
	GetByGroup(ctx context.Context, set domain.ResultSet, group domain.GroupKey) ([]*domain.SignificanceResult, error)

	// GetAll retrieves the set's results ordered by (measure, season, pandemic_period, site_id) ASC.
	GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.SignificanceResult, error)
}

// AggregateSummaryStore provides access to aggregate_summaries storage.
type AggregateSummaryStore interface {
	// InsertBulk adds multiple summaries atomically. Fails entire batch on duplicate
	// (result set, measure, season, pandemic_period).
	InsertBulk(ctx context.Context, summaries []*domain.AggregateSummary) error

	// GetByKey retrieves one summary. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, set domain.ResultSet, group domain.GroupKey) (*domain.AggregateSummary, error)

	// GetAll retrieves the set's summaries ordered by (measure, season, pandemic_period) ASC.
	GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.AggregateSummary, error)
}

// TrendResultStore provides access to trend_results storage.
type TrendResultStore interface {
	// InsertBulk adds multiple results atomically. Fails entire batch on duplicate
	// (result set, measure, site_id) where a nil site_id is the measure-level fit.
	InsertBulk(ctx context.Context, results []*domain.TrendResult) error

	// GetByMeasure retrieves the set's results for one measure, measure-level fit first, then by site_id ASC.
	GetByMeasure(ctx context.Context, set domain.ResultSet, measure string) ([]*domain.TrendResult, error)

	// GetAll retrieves the set's results ordered by (measure, site_id) ASC.
	GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.TrendResult, error)
}

// NationalYearStore provides access to national_year_summaries storage.
type NationalYearStore interface {
	// InsertBulk adds multiple summaries atomically. Fails entire batch on duplicate
	// (result set, measure, year).
	InsertBulk(ctx context.Context, summaries []*domain.NationalYearSummary) error

	// GetByMeasure retrieves the set's summaries for one measure ordered by year ASC.
	GetByMeasure(ctx context.Context, set domain.ResultSet, measure string) ([]*domain.NationalYearSummary, error)

	// GetAll retrieves the set's summaries ordered by (measure, year) ASC.
	GetAll(ctx context.Context, set domain.ResultSet) ([]*domain.NationalYearSummary, error)
}
