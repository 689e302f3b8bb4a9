package domain

import "time"

// IntervalCount is one input fact row: counts for a measure at a site over a
// short interval. Numerator and denominator arrive already disclosure-rounded.
type IntervalCount struct {
	Measure       string    // measure identifier, e.g. "flu"
	SiteID        int64     // pseudonymized practice id
	IntervalStart time.Time // UTC midnight of the first day of the interval
	Numerator     int64     // >= 0
	Denominator   int64     // list size, > 0 once past the loader
}

// Season is a named two-month window. SeasonNone marks unmapped months.
type Season string

// SeasonNone is the label for months outside every configured season.
const SeasonNone Season = "none"

// PandemicPeriod labels an interval relative to the configured pandemic range.
type PandemicPeriod string

// Pandemic period constants
const (
	PandemicBefore PandemicPeriod = "before"
	PandemicDuring PandemicPeriod = "during"
	PandemicAfter  PandemicPeriod = "after"
)

// PandemicPeriods lists periods in chronological order.
var PandemicPeriods = []PandemicPeriod{PandemicBefore, PandemicDuring, PandemicAfter}

// ClassifiedInterval is an IntervalCount with calendar labels attached.
type ClassifiedInterval struct {
	IntervalCount

	Season         Season
	PandemicPeriod PandemicPeriod
	ReferenceYear  int // 12-month cycle whose reference season is the baseline
}

// RatePer1000 returns 1000 * numerator / denominator.
// Denominator is guaranteed positive past the loader.
func (c *IntervalCount) RatePer1000() float64 {
	return 1000 * float64(c.Numerator) / float64(c.Denominator)
}

// NormalizedInterval is a ClassifiedInterval joined to both baselines.
// RR and RD fields are nil when the baseline is missing or zero.
type NormalizedInterval struct {
	ClassifiedInterval
	ResultSet

	RatePer1000 float64

	BaselineRolling *float64 // rolling baseline rate, nil when absent
	RRRolling       *float64
	RDRolling       *float64

	BaselineAnchor *float64 // anchor baseline rate, nil when absent
	RRAnchor       *float64
	RDAnchor       *float64
}

// IntervalKey identifies an input row.
type IntervalKey struct {
	Measure       string
	SiteID        int64
	IntervalStart time.Time
}

// Key returns the identifying key of the row.
func (c *IntervalCount) Key() IntervalKey {
	return IntervalKey{Measure: c.Measure, SiteID: c.SiteID, IntervalStart: c.IntervalStart}
}

// CompareIntervals orders rows by measure, site, interval start.
// Returns -1, 0 or 1.
func CompareIntervals(a, b *IntervalCount) int {
	if a.Measure != b.Measure {
		if a.Measure < b.Measure {
			return -1
		}
		return 1
	}
	if a.SiteID != b.SiteID {
		if a.SiteID < b.SiteID {
			return -1
		}
		return 1
	}
	if !a.IntervalStart.Equal(b.IntervalStart) {
		if a.IntervalStart.Before(b.IntervalStart) {
			return -1
		}
		return 1
	}
	return 0
}

// Float returns a pointer to v. Used to build optional values.
func Float(v float64) *float64 {
	return &v
}
