package significance

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/observability"
)

// StageName labels tester exclusions in the ledger and metrics.
const StageName = "significance"

// ErrDegenerateInput is returned when a test group is empty or has zero exposure.
var ErrDegenerateInput = errors.New("degenerate test input")

// TesterOptions contains configuration for creating a Tester.
type TesterOptions struct {
	ReferenceSeason domain.Season
	Alpha           float64
	Workers         int // measures tested concurrently; <= 0 means 1
	Logger          logrus.FieldLogger
	Metrics         *observability.Metrics
}

// Tester runs one target-vs-reference test per (measure, site, season, pandemic_period).
type Tester struct {
	referenceSeason domain.Season
	alpha           float64
	workers         int
	logger          logrus.FieldLogger
	metrics         *observability.Metrics
}

// NewTester creates a new Tester.
func NewTester(opts TesterOptions) *Tester {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Tester{
		referenceSeason: opts.ReferenceSeason,
		alpha:           opts.Alpha,
		workers:         workers,
		logger:          logger,
		metrics:         opts.Metrics,
	}
}

// groupStats are the summed counts of one (measure, site, season, pandemic) cell.
type groupStats struct {
	numerator   int64
	denominator int64
	intervals   int
}

type cellKey struct {
	siteID   int64
	season   domain.Season
	pandemic domain.PandemicPeriod
}

// Run tests every observed non-reference combination in rows and applies
// the Benjamini-Hochberg correction. Rows should come from the site-scope
// zero-baseline filter. Results are ordered by (measure, season,
// pandemic_period, site_id). Undefined results carry a nil p-value.
func (t *Tester) Run(ctx context.Context, rows []*domain.NormalizedInterval) ([]*domain.SignificanceResult, error) {
	byMeasure := make(map[string][]*domain.NormalizedInterval)
	for _, r := range rows {
		byMeasure[r.Measure] = append(byMeasure[r.Measure], r)
	}
	measures := make([]string, 0, len(byMeasure))
	for m := range byMeasure {
		measures = append(measures, m)
	}
	sort.Strings(measures)

	perMeasure := make([][]*domain.SignificanceResult, len(measures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, measure := range measures {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perMeasure[i] = t.testMeasure(measure, byMeasure[measure])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []*domain.SignificanceResult
	for _, rs := range perMeasure {
		results = append(results, rs...)
	}
	AdjustBH(results, t.alpha)

	undefined := 0
	for _, r := range results {
		switch {
		case !r.Defined():
			undefined++
			t.metrics.RecordTest(observability.TestOutcomeUndefined)
		case r.Significant:
			t.metrics.RecordTest(observability.TestOutcomeSignificant)
		default:
			t.metrics.RecordTest(observability.TestOutcomeNotSig)
		}
	}
	t.metrics.RecordExclusions(StageName, domain.ExclusionDegenerateTest, undefined)

	fields := logrus.Fields{"stage": StageName, "tests": len(results), "undefined": undefined}
	if undefined > 0 {
		t.logger.WithFields(fields).Warn("significance tests with undefined result")
	} else {
		t.logger.WithFields(fields).Info("significance tests complete")
	}
	return results, nil
}

// testMeasure emits one result per site for every non-reference
// (season, pandemic_period) observed anywhere in the measure. A site missing
// the target or the reference cell gets an undefined result.
func (t *Tester) testMeasure(measure string, rows []*domain.NormalizedInterval) []*domain.SignificanceResult {
	type period struct {
		season   domain.Season
		pandemic domain.PandemicPeriod
	}
	cells := make(map[cellKey]*groupStats)
	sites := make(map[int64]struct{})
	targets := make(map[period]struct{})
	for _, r := range rows {
		k := cellKey{siteID: r.SiteID, season: r.Season, pandemic: r.PandemicPeriod}
		s, ok := cells[k]
		if !ok {
			s = &groupStats{}
			cells[k] = s
		}
		s.numerator += r.Numerator
		s.denominator += r.Denominator
		s.intervals++
		sites[r.SiteID] = struct{}{}
		if r.Season != t.referenceSeason && r.Season != domain.SeasonNone {
			targets[period{season: r.Season, pandemic: r.PandemicPeriod}] = struct{}{}
		}
	}

	results := make([]*domain.SignificanceResult, 0, len(sites)*len(targets))
	for siteID := range sites {
		for p := range targets {
			target := cells[cellKey{siteID: siteID, season: p.season, pandemic: p.pandemic}]
			reference := cells[cellKey{siteID: siteID, season: t.referenceSeason, pandemic: p.pandemic}]

			res := &domain.SignificanceResult{
				Measure:        measure,
				Season:         p.season,
				PandemicPeriod: p.pandemic,
				SiteID:         siteID,
			}
			if target != nil {
				res.TargetNumerator = target.numerator
				res.TargetDenominator = target.denominator
				res.TargetIntervals = target.intervals
			}
			if reference != nil {
				res.ReferenceNumerator = reference.numerator
				res.ReferenceDenominator = reference.denominator
				res.ReferenceIntervals = reference.intervals
			}

			pValue, err := testCells(target, reference)
			if err != nil {
				t.logger.WithFields(logrus.Fields{
					"measure":  measure,
					"site_id":  siteID,
					"season":   p.season,
					"pandemic": p.pandemic,
				}).WithError(err).Debug("test undefined")
			} else {
				res.PValue = &pValue
			}
			results = append(results, res)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		if a.PandemicPeriod != b.PandemicPeriod {
			return a.PandemicPeriod < b.PandemicPeriod
		}
		return a.SiteID < b.SiteID
	})
	return results
}

// testCells returns the rounded E-test p-value of target against reference.
func testCells(target, reference *groupStats) (float64, error) {
	if target == nil || reference == nil || target.intervals == 0 || reference.intervals == 0 {
		return 0, ErrDegenerateInput
	}
	if target.denominator <= 0 || reference.denominator <= 0 {
		return 0, ErrDegenerateInput
	}
	p := PoissonMeansTest(
		float64(target.numerator), float64(target.denominator),
		float64(reference.numerator), float64(reference.denominator),
	)
	return RoundPValue(p), nil
}
