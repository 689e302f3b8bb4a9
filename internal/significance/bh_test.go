package significance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasonality-lab/internal/domain"
)

func TestBenjaminiHochberg(t *testing.T) {
	got := BenjaminiHochberg([]float64{0.01, 0.04, 0.03, 0.20})
	want := []float64{0.04, 0.0533333, 0.0533333, 0.20}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-6, "index %d", i)
	}
}

func TestBenjaminiHochberg_ClippedToOne(t *testing.T) {
	got := BenjaminiHochberg([]float64{0.9, 0.95, 1.0})
	for _, v := range got {
		assert.LessOrEqual(t, v, 1.0)
	}
}

func result(measure string, season domain.Season, site int64, p *float64) *domain.SignificanceResult {
	return &domain.SignificanceResult{
		Measure:        measure,
		Season:         season,
		PandemicPeriod: domain.PandemicAfter,
		SiteID:         site,
		PValue:         p,
	}
}

func TestAdjustBH_PerGroupAndUndefined(t *testing.T) {
	results := []*domain.SignificanceResult{
		result("flu", "Sep-Oct", 1, domain.Float(0.01)),
		result("flu", "Sep-Oct", 2, domain.Float(0.04)),
		result("flu", "Sep-Oct", 3, nil),
		result("flu", "Nov-Dec", 1, domain.Float(0.04)),
	}

	AdjustBH(results, 0.05)

	// two defined values in the first group
	assert.InDelta(t, 0.02, *results[0].PValueAdjusted, 1e-9)
	assert.InDelta(t, 0.04, *results[1].PValueAdjusted, 1e-9)
	assert.Nil(t, results[2].PValueAdjusted)
	assert.False(t, results[2].Significant)
	assert.False(t, results[2].SignificantAdj)
	// alone in its group, unchanged
	assert.InDelta(t, 0.04, *results[3].PValueAdjusted, 1e-9)

	for _, r := range results {
		if r.Defined() {
			assert.GreaterOrEqual(t, *r.PValueAdjusted, *r.PValue)
			assert.True(t, r.Significant)
		}
	}
}

func TestAdjustBH_Idempotent(t *testing.T) {
	results := []*domain.SignificanceResult{
		result("flu", "Sep-Oct", 1, domain.Float(0.001)),
		result("flu", "Sep-Oct", 2, domain.Float(0.02)),
		result("flu", "Sep-Oct", 3, domain.Float(0.03)),
		result("flu", "Sep-Oct", 4, domain.Float(0.5)),
	}

	AdjustBH(results, 0.05)
	first := make([]float64, len(results))
	for i, r := range results {
		first[i] = *r.PValueAdjusted
	}

	AdjustBH(results, 0.05)
	for i, r := range results {
		assert.Equal(t, first[i], *r.PValueAdjusted)
	}
}
