package normalization

import (
	"seasonality-lab/internal/domain"
)

// Scope selects the stratum the zero-baseline filter works on.
type Scope string

// Filter scopes
const (
	ScopeSite     Scope = "site"     // (measure, site_id, reference_year)
	ScopeNational Scope = "national" // (measure, reference_year)
)

// FilterZeroBaselines drops every interval whose stratum-year has a zero or
// absent reference-season numerator. The removal covers all seasons of the
// stratum-year, not only the reference season. Returns the kept rows and
// the number removed.
func FilterZeroBaselines(rows []*domain.NormalizedInterval, set *BaselineSet, scope Scope) ([]*domain.NormalizedInterval, int) {
	kept := make([]*domain.NormalizedInterval, 0, len(rows))
	for _, r := range rows {
		if hasBaseline(set, scope, &r.ClassifiedInterval) {
			kept = append(kept, r)
		}
	}
	return kept, len(rows) - len(kept)
}

func hasBaseline(set *BaselineSet, scope Scope, r *domain.ClassifiedInterval) bool {
	switch scope {
	case ScopeNational:
		nb, err := set.National(domain.BaselineRolling, r.Measure, r.ReferenceYear)
		return err == nil && nb.SumNumerator > 0
	default:
		rec, err := set.Lookup(domain.BaselineRolling, r.Measure, r.SiteID, r.ReferenceYear)
		return err == nil && rec.SumNumerator > 0
	}
}
