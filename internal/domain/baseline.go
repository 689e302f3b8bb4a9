package domain

// BaselineKind selects which reference-season baseline an interval is compared to.
type BaselineKind string

// Baseline kinds
const (
	BaselineRolling BaselineKind = "rolling" // the interval's own reference year
	BaselineAnchor  BaselineKind = "anchor"  // earliest reference year for the measure/site
)

// BaselineRecord holds the reference-season rate for one key.
// Corresponds to the baselines table.
type BaselineRecord struct {
	ResultSet

	Measure       string
	SiteID        int64
	ReferenceYear int // for anchor records: the reference year the anchor was taken from
	Kind          BaselineKind

	MeanRate       float64 // mean of interval rate_per_1000 over the reference season
	SumNumerator   int64
	SumDenominator int64
	IntervalCount  int
}

// IsZero reports whether the baseline cannot serve as a ratio denominator.
func (b *BaselineRecord) IsZero() bool {
	return b.SumNumerator == 0 || b.MeanRate == 0
}

// BaselineKey identifies a rolling baseline stratum.
type BaselineKey struct {
	Measure       string
	SiteID        int64
	ReferenceYear int
}
