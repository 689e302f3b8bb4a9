package significance

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/observability"
)

const ref = domain.Season("Jun-Jul")

func row(measure string, site int64, season domain.Season, num, den int64) *domain.NormalizedInterval {
	return &domain.NormalizedInterval{
		ClassifiedInterval: domain.ClassifiedInterval{
			IntervalCount: domain.IntervalCount{
				Measure:       measure,
				SiteID:        site,
				IntervalStart: time.Date(2022, 6, 6, 0, 0, 0, 0, time.UTC),
				Numerator:     num,
				Denominator:   den,
			},
			Season:         season,
			PandemicPeriod: domain.PandemicAfter,
			ReferenceYear:  2022,
		},
	}
}

func scenarioB() []*domain.NormalizedInterval {
	var rows []*domain.NormalizedInterval
	for i := 0; i < 10; i++ {
		rows = append(rows, row("flu", 1, ref, 10, 100))
		rows = append(rows, row("flu", 1, "Sep-Oct", 30, 100))
	}
	return rows
}

func TestTester_ScenarioB(t *testing.T) {
	tester := NewTester(TesterOptions{ReferenceSeason: ref, Alpha: 0.05})

	results, err := tester.Run(context.Background(), scenarioB())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, domain.Season("Sep-Oct"), r.Season)
	assert.Equal(t, int64(300), r.TargetNumerator)
	assert.Equal(t, int64(1000), r.TargetDenominator)
	assert.Equal(t, int64(100), r.ReferenceNumerator)
	assert.Equal(t, 10, r.ReferenceIntervals)
	require.True(t, r.Defined())
	assert.Less(t, *r.PValue, 0.05)
	assert.True(t, r.Significant)
	assert.True(t, r.SignificantAdj)
}

func TestTester_NeverEmitsReferenceOrNone(t *testing.T) {
	rows := append(scenarioB(), row("flu", 1, domain.SeasonNone, 5, 100))
	tester := NewTester(TesterOptions{ReferenceSeason: ref, Alpha: 0.05})

	results, err := tester.Run(context.Background(), rows)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, ref, r.Season)
		assert.NotEqual(t, domain.SeasonNone, r.Season)
	}
}

func TestTester_MissingReferenceIsUndefined(t *testing.T) {
	rows := append(scenarioB(), row("flu", 2, "Sep-Oct", 30, 100))
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg, "test")
	tester := NewTester(TesterOptions{ReferenceSeason: ref, Alpha: 0.05, Metrics: metrics})

	results, err := tester.Run(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, results, 2)

	undefined := results[1]
	assert.Equal(t, int64(2), undefined.SiteID)
	assert.False(t, undefined.Defined())
	assert.Nil(t, undefined.PValueAdjusted)
	assert.False(t, undefined.Significant)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SignificanceTests.WithLabelValues(observability.TestOutcomeUndefined)))
}

func TestTester_MissingTargetIsUndefined(t *testing.T) {
	var rows []*domain.NormalizedInterval
	for i := 0; i < 4; i++ {
		rows = append(rows,
			row("flu", 1, ref, 10, 100),
			row("flu", 2, ref, 10, 100),
			row("flu", 2, "Sep-Oct", 30, 100),
		)
	}
	tester := NewTester(TesterOptions{ReferenceSeason: ref, Alpha: 0.05})

	results, err := tester.Run(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, results, 2)

	missing := results[0]
	assert.Equal(t, int64(1), missing.SiteID)
	assert.Equal(t, domain.Season("Sep-Oct"), missing.Season)
	assert.Equal(t, domain.PandemicAfter, missing.PandemicPeriod)
	assert.False(t, missing.Defined())
	assert.Equal(t, 0, missing.TargetIntervals)
	assert.Equal(t, int64(40), missing.ReferenceNumerator)
	assert.Equal(t, 4, missing.ReferenceIntervals)

	assert.Equal(t, int64(2), results[1].SiteID)
	assert.True(t, results[1].Defined())
}

func TestTester_DeterministicAcrossWorkers(t *testing.T) {
	var rows []*domain.NormalizedInterval
	for _, m := range []string{"ari", "flu", "rsv", "covid"} {
		for site := int64(1); site <= 5; site++ {
			rows = append(rows,
				row(m, site, ref, 6*site, 600),
				row(m, site, "Sep-Oct", 12*site, 600),
				row(m, site, "Nov-Dec", 18, 600),
			)
		}
	}

	serial, err := NewTester(TesterOptions{ReferenceSeason: ref, Alpha: 0.05, Workers: 1}).Run(context.Background(), rows)
	require.NoError(t, err)
	parallel, err := NewTester(TesterOptions{ReferenceSeason: ref, Alpha: 0.05, Workers: 4}).Run(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, parallel, len(serial))
	for i := range serial {
		assert.Equal(t, serial[i].Group(), parallel[i].Group())
		assert.Equal(t, serial[i].SiteID, parallel[i].SiteID)
		assert.Equal(t, *serial[i].PValue, *parallel[i].PValue)
	}
	assert.Equal(t, "ari", serial[0].Measure)
}

func TestTester_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTester(TesterOptions{ReferenceSeason: ref, Alpha: 0.05}).Run(ctx, scenarioB())
	assert.ErrorIs(t, err, context.Canceled)
}
