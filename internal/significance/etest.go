// Package significance tests target seasons against the reference season
// per site and corrects the p-values for multiple testing.
package significance

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// maxGridCells bounds the E-test evaluation grid. Larger inputs use the
// normal approximation.
const maxGridCells = 4_000_000

// tailSigmas is the half-width of the evaluated Poisson range in standard deviations.
const tailSigmas = 10

// PoissonMeansTest returns the two-sided E-test p-value for the hypothesis
// that two Poisson rates are equal, given event counts k1, k2 observed over
// exposures n1, n2 (Krishnamoorthy and Thomson, 2004).
//
// Exposures must be positive. When both counts are zero the rates cannot
// differ and the p-value is 1.
func PoissonMeansTest(k1, n1, k2, n2 float64) float64 {
	lambda := (k1 + k2) / (n1 + n2)
	if lambda <= 0 {
		return 1
	}

	observed := math.Abs(tStatistic(k1, n1, k2, n2))

	mean1, mean2 := n1*lambda, n2*lambda
	lo1, hi1 := poissonRange(mean1)
	lo2, hi2 := poissonRange(mean2)
	if (hi1-lo1+1)*(hi2-lo2+1) > maxGridCells {
		return normalApprox(observed)
	}

	p1 := poissonProbs(mean1, lo1, hi1)
	p2 := poissonProbs(mean2, lo2, hi2)

	var p float64
	for i, pi := range p1 {
		x1 := float64(lo1 + i)
		for j, pj := range p2 {
			x2 := float64(lo2 + j)
			if math.Abs(tStatistic(x1, n1, x2, n2)) >= observed {
				p += pi * pj
			}
		}
	}
	return math.Min(p, 1)
}

// tStatistic is the variance-stabilized difference of the two rate estimates.
// Two zero counts show no difference and score 0.
func tStatistic(k1, n1, k2, n2 float64) float64 {
	diff := k1/n1 - k2/n2
	variance := k1/(n1*n1) + k2/(n2*n2)
	if variance == 0 {
		if diff == 0 {
			return 0
		}
		return math.Copysign(math.Inf(1), diff)
	}
	return diff / math.Sqrt(variance)
}

// poissonRange returns a count range holding all but a negligible tail of
// a Poisson distribution with the given mean.
func poissonRange(mean float64) (lo, hi int) {
	width := tailSigmas*math.Sqrt(mean) + tailSigmas
	lo = int(math.Max(0, math.Floor(mean-width)))
	hi = int(math.Ceil(mean + width))
	return lo, hi
}

func poissonProbs(mean float64, lo, hi int) []float64 {
	dist := distuv.Poisson{Lambda: mean}
	probs := make([]float64, hi-lo+1)
	for i := range probs {
		probs[i] = dist.Prob(float64(lo + i))
	}
	return probs
}

// normalApprox is the two-sided Wald p-value for a standard normal statistic.
func normalApprox(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return 2 * distuv.UnitNormal.Survival(z)
}
