package significance

import (
	"sort"

	"seasonality-lab/internal/domain"
)

// AdjustBH applies the Benjamini-Hochberg correction within every
// (measure, season, pandemic_period) group, over defined p-values only.
// Adjusted values are always derived from the raw p-values, so calling
// AdjustBH again on its own output leaves them unchanged. Flags are set
// against alpha for raw and adjusted values separately.
func AdjustBH(results []*domain.SignificanceResult, alpha float64) {
	groups := make(map[domain.GroupKey][]*domain.SignificanceResult)
	for _, r := range results {
		r.PValueAdjusted = nil
		r.Significant = false
		r.SignificantAdj = false
		if !r.Defined() {
			continue
		}
		r.Significant = *r.PValue < alpha
		groups[r.Group()] = append(groups[r.Group()], r)
	}

	for _, group := range groups {
		adjusted := BenjaminiHochberg(rawPValues(group))
		for i, r := range group {
			adj := RoundPValue(adjusted[i])
			r.PValueAdjusted = &adj
			r.SignificantAdj = adj < alpha
		}
	}
}

func rawPValues(results []*domain.SignificanceResult) []float64 {
	ps := make([]float64, len(results))
	for i, r := range results {
		ps[i] = *r.PValue
	}
	return ps
}

// BenjaminiHochberg returns the adjusted p-values of ps in input order.
func BenjaminiHochberg(ps []float64) []float64 {
	m := len(ps)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ps[order[a]] < ps[order[b]]
	})

	adjusted := make([]float64, m)
	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		v := ps[idx] * float64(m) / float64(rank)
		if v < running {
			running = v
		}
		adjusted[idx] = running
	}
	return adjusted
}
