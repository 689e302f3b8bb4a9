package domain

// SignificanceResult is the outcome of one target-vs-reference season test.
// Corresponds to the significance_results table.
type SignificanceResult struct {
	ResultSet

	Measure        string
	Season         Season
	PandemicPeriod PandemicPeriod
	SiteID         int64

	// Aggregated inputs
	TargetNumerator      int64
	TargetDenominator    int64
	TargetIntervals      int
	ReferenceNumerator   int64
	ReferenceDenominator int64
	ReferenceIntervals   int

	PValue         *float64 // nil when undefined
	PValueAdjusted *float64 // BH-adjusted within (measure, season, pandemic_period)
	Significant    bool     // PValue < alpha
	SignificantAdj bool     // PValueAdjusted < alpha
}

// Defined reports whether the test produced a p-value.
func (r *SignificanceResult) Defined() bool {
	return r.PValue != nil
}

// GroupKey identifies a (measure, season, pandemic_period) group.
type GroupKey struct {
	Measure        string
	Season         Season
	PandemicPeriod PandemicPeriod
}

// Group returns the correction group of the result.
func (r *SignificanceResult) Group() GroupKey {
	return GroupKey{Measure: r.Measure, Season: r.Season, PandemicPeriod: r.PandemicPeriod}
}

// AggregateSummary is the national roll-up for one (measure, season, pandemic_period).
// Corresponds to the aggregate_summaries table.
type AggregateSummary struct {
	ResultSet

	Measure        string
	Season         Season
	PandemicPeriod PandemicPeriod

	// Counts
	SitesContributing  int
	SitesZeroNumerator int
	PropSitesZero      float64 // SitesZeroNumerator / SitesContributing
	PooledNumerator    int64
	PooledDenominator  int64
	PooledRate         float64

	// Denominator-weighted (pooled) ratios
	PooledRRRolling *float64
	PooledRDRolling *float64
	PooledRRAnchor  *float64
	PooledRDAnchor  *float64

	// Site-weighted ratios (mean of per-site means)
	SiteRRRolling *float64
	SiteRDRolling *float64
	SiteRRAnchor  *float64
	SiteRDAnchor  *float64

	// Significance summary
	TestsDefined        int
	SitesSignificant    int
	SitesSignificantAdj int
	PropSignificant     *float64 // nil when no defined tests
	PropSignificantAdj  *float64
}

// VarianceSummary describes rate and ratio dispersion within and between sites
// for one (measure, season, pandemic_period).
type VarianceSummary struct {
	Measure        string
	Season         Season
	PandemicPeriod PandemicPeriod
	Sites          int

	// Within-site: mean over sites of the per-site statistic. Variances
	// are nil when no site has two intervals.
	WithinRateMean float64
	WithinRateVar  *float64
	WithinRRMean   *float64
	WithinRRVar    *float64
	WithinRDMean   *float64
	WithinRDVar    *float64

	// Between-site: statistic of the per-site means. Variances are nil
	// with fewer than two sites.
	BetweenRateMean float64
	BetweenRateVar  *float64
	BetweenRRMean   *float64
	BetweenRRVar    *float64
	BetweenRDMean   *float64
	BetweenRDVar    *float64
}

// TrendResult is a linear fit of rate and RR against elapsed weeks.
// SiteID is nil for measure-level fits.
type TrendResult struct {
	ResultSet

	Measure string
	SiteID  *int64

	Points    int
	FirstWeek string // ISO date of the series' own time zero
	RateSlope float64
	RateR2    float64
	RateCV    *float64 // nil when the mean rate is zero
	RRPoints  int
	RRSlope   *float64
	RRR2      *float64
	RRCV      *float64
}
