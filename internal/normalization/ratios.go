package normalization

import (
	"seasonality-lab/internal/domain"
)

// Normalize joins every interval to its rolling and anchor baselines.
// The rate is always defined. RR and RD stay nil when the baseline is
// missing or zero.
func Normalize(rows []*domain.ClassifiedInterval, set *BaselineSet) []*domain.NormalizedInterval {
	out := make([]*domain.NormalizedInterval, 0, len(rows))
	for _, r := range rows {
		n := &domain.NormalizedInterval{
			ClassifiedInterval: *r,
			RatePer1000:        r.RatePer1000(),
		}
		if rec, err := set.Lookup(domain.BaselineRolling, r.Measure, r.SiteID, r.ReferenceYear); err == nil {
			n.BaselineRolling, n.RRRolling, n.RDRolling = ratios(n.RatePer1000, rec)
		}
		if rec, err := set.Lookup(domain.BaselineAnchor, r.Measure, r.SiteID, r.ReferenceYear); err == nil {
			n.BaselineAnchor, n.RRAnchor, n.RDAnchor = ratios(n.RatePer1000, rec)
		}
		out = append(out, n)
	}
	return out
}

// ratios returns the baseline rate with the rate ratio and rate difference
// against it. The ratios are nil for a zero baseline.
func ratios(rate float64, rec *domain.BaselineRecord) (baseline, rr, rd *float64) {
	baseline = domain.Float(rec.MeanRate)
	if rec.IsZero() {
		return baseline, nil, nil
	}
	return baseline, domain.Float(rate / rec.MeanRate), domain.Float(rate - rec.MeanRate)
}
