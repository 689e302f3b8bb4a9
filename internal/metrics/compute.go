package metrics

import (
	"github.com/montanaflynn/stats"
)

// meanOf returns the arithmetic mean, or nil for an empty series.
func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m, err := stats.Mean(values)
	if err != nil {
		return nil
	}
	return &m
}

// sampleVarOf returns the sample variance (n-1), or nil with fewer than two values.
func sampleVarOf(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	v, err := stats.SampleVariance(values)
	if err != nil {
		return nil
	}
	return &v
}

// valueOr dereferences p, returning def when p is nil.
func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// ratio returns num/den, or nil when den is zero.
func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	r := num / den
	return &r
}

// definedValues collects the non-nil values selected by get.
func definedValues[T any](rows []T, get func(T) *float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := get(r); v != nil {
			out = append(out, *v)
		}
	}
	return out
}
