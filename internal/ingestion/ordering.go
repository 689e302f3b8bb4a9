package ingestion

import (
	"errors"
	"sort"

	"seasonality-lab/internal/domain"
)

// ErrInvalidOrdering is returned when rows are not in canonical order.
var ErrInvalidOrdering = errors.New("interval rows are not in deterministic order")

// SortIntervals orders rows by (measure ASC, site_id ASC, interval_start ASC).
// The sort is stable so duplicate keys keep their source order.
func SortIntervals(rows []*domain.IntervalCount) {
	sort.SliceStable(rows, func(i, j int) bool {
		return domain.CompareIntervals(rows[i], rows[j]) < 0
	})
}

// ValidateOrdering checks that rows are strictly increasing by key.
// Returns ErrInvalidOrdering on the first out-of-order or duplicate pair.
func ValidateOrdering(rows []*domain.IntervalCount) error {
	for i := 1; i < len(rows); i++ {
		if domain.CompareIntervals(rows[i-1], rows[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// MergeDuplicates folds rows sharing a key into one row by summing numerator
// and denominator. Input must be sorted. Returns the merged rows and the
// number of rows folded away.
func MergeDuplicates(rows []*domain.IntervalCount) ([]*domain.IntervalCount, int) {
	if len(rows) == 0 {
		return rows, 0
	}

	out := make([]*domain.IntervalCount, 0, len(rows))
	merged := 0
	for _, r := range rows {
		if n := len(out); n > 0 && domain.CompareIntervals(out[n-1], r) == 0 {
			out[n-1].Numerator += r.Numerator
			out[n-1].Denominator += r.Denominator
			merged++
			continue
		}
		rowCopy := *r
		out = append(out, &rowCopy)
	}
	return out, merged
}
