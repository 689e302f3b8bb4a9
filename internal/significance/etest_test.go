package significance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoissonMeansTest_ScenarioB(t *testing.T) {
	// 300 events over 1000 vs 100 events over 1000
	p := PoissonMeansTest(300, 1000, 100, 1000)
	assert.Less(t, p, 0.05)
	assert.GreaterOrEqual(t, p, 0.0)
}

func TestPoissonMeansTest_EqualRates(t *testing.T) {
	p := PoissonMeansTest(100, 1000, 100, 1000)
	assert.Greater(t, p, 0.9)
	assert.LessOrEqual(t, p, 1.0)
}

func TestPoissonMeansTest_EqualSmallCountsIsOne(t *testing.T) {
	// Low means put real mass on the cell where both counts are zero.
	assert.InDelta(t, 1.0, PoissonMeansTest(1, 10, 1, 10), 1e-9)
	assert.InDelta(t, 1.0, PoissonMeansTest(2, 10, 4, 20), 1e-9)
}

func TestPoissonMeansTest_BothZero(t *testing.T) {
	assert.Equal(t, 1.0, PoissonMeansTest(0, 1000, 0, 500))
}

func TestPoissonMeansTest_Symmetric(t *testing.T) {
	tests := []struct {
		k1, n1, k2, n2 float64
	}{
		{12, 600, 30, 600},
		{0, 1200, 6, 1800},
		{45, 3000, 18, 900},
	}

	for _, tt := range tests {
		a := PoissonMeansTest(tt.k1, tt.n1, tt.k2, tt.n2)
		b := PoissonMeansTest(tt.k2, tt.n2, tt.k1, tt.n1)
		assert.InDelta(t, a, b, 1e-12, "k1=%v k2=%v", tt.k1, tt.k2)
	}
}

func TestPoissonMeansTest_MoreExtremeIsSmaller(t *testing.T) {
	mild := PoissonMeansTest(120, 1000, 100, 1000)
	strong := PoissonMeansTest(180, 1000, 100, 1000)
	assert.Less(t, strong, mild)
}

func TestPoissonMeansTest_LargeCountsUseNormalApprox(t *testing.T) {
	p := PoissonMeansTest(60000, 1e6, 50000, 1e6)
	assert.False(t, math.IsNaN(p))
	assert.Less(t, p, 1e-6)

	same := PoissonMeansTest(50000, 1e6, 50000, 1e6)
	assert.InDelta(t, 1.0, same, 1e-9)
}

func TestRoundPValue(t *testing.T) {
	assert.Equal(t, 0.0123, RoundPValue(0.012345))
	assert.Equal(t, 0.0124, RoundPValue(0.01235))
	assert.Equal(t, 1.0, RoundPValue(0.99999))
	assert.Equal(t, 0.0, RoundPValue(0.00001))
}
