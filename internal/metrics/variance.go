package metrics

import (
	"seasonality-lab/internal/domain"
)

// siteSeries holds one site's interval values within a group.
type siteSeries struct {
	rate []float64
	rr   []float64
	rd   []float64
}

// VarianceSummaries describes the spread of rate, RR_rolling and RD_rolling
// within and between sites for every (measure, season, pandemic_period)
// group of the site-filtered rows. Unmapped months are skipped.
//
// Within-site statistics are the mean over sites of each site's own mean
// and sample variance. Between-site statistics are the mean and sample
// variance of the per-site means.
func VarianceSummaries(rows []*domain.NormalizedInterval) []*domain.VarianceSummary {
	groups := make(map[domain.GroupKey]map[int64]*siteSeries)
	for _, r := range rows {
		if r.Season == domain.SeasonNone {
			continue
		}
		k := groupOf(&r.ClassifiedInterval)
		sites, ok := groups[k]
		if !ok {
			sites = make(map[int64]*siteSeries)
			groups[k] = sites
		}
		s, ok := sites[r.SiteID]
		if !ok {
			s = &siteSeries{}
			sites[r.SiteID] = s
		}
		s.rate = append(s.rate, r.RatePer1000)
		if r.RRRolling != nil {
			s.rr = append(s.rr, *r.RRRolling)
		}
		if r.RDRolling != nil {
			s.rd = append(s.rd, *r.RDRolling)
		}
	}

	out := make([]*domain.VarianceSummary, 0, len(groups))
	for k, sites := range groups {
		v := &domain.VarianceSummary{
			Measure:        k.Measure,
			Season:         k.Season,
			PandemicPeriod: k.PandemicPeriod,
			Sites:          len(sites),
		}
		ordered := make([]*siteSeries, 0, len(sites))
		for _, id := range sortedSites(sites) {
			ordered = append(ordered, sites[id])
		}

		var within, between dispersion
		within.rate, between.rate = spread(ordered, func(s *siteSeries) []float64 { return s.rate })
		within.rr, between.rr = spread(ordered, func(s *siteSeries) []float64 { return s.rr })
		within.rd, between.rd = spread(ordered, func(s *siteSeries) []float64 { return s.rd })

		v.WithinRateMean = valueOr(within.rate.mean, 0)
		v.WithinRateVar = within.rate.variance
		v.WithinRRMean, v.WithinRRVar = within.rr.mean, within.rr.variance
		v.WithinRDMean, v.WithinRDVar = within.rd.mean, within.rd.variance

		v.BetweenRateMean = valueOr(between.rate.mean, 0)
		v.BetweenRateVar = between.rate.variance
		v.BetweenRRMean, v.BetweenRRVar = between.rr.mean, between.rr.variance
		v.BetweenRDMean, v.BetweenRDVar = between.rd.mean, between.rd.variance

		out = append(out, v)
	}

	sortVariance(out)
	return out
}

type moments struct {
	mean     *float64
	variance *float64
}

type dispersion struct {
	rate, rr, rd moments
}

// spread returns the within-site and between-site moments of one series.
func spread(sites []*siteSeries, values func(*siteSeries) []float64) (within, between moments) {
	var siteMeans, siteVars []float64
	for _, s := range sites {
		vs := values(s)
		if m := meanOf(vs); m != nil {
			siteMeans = append(siteMeans, *m)
		}
		if v := sampleVarOf(vs); v != nil {
			siteVars = append(siteVars, *v)
		}
	}
	within = moments{mean: meanOf(siteMeans), variance: meanOf(siteVars)}
	between = moments{mean: meanOf(siteMeans), variance: sampleVarOf(siteMeans)}
	return within, between
}

func sortVariance(rows []*domain.VarianceSummary) {
	sortBy(rows, func(v *domain.VarianceSummary) domain.GroupKey {
		return domain.GroupKey{Measure: v.Measure, Season: v.Season, PandemicPeriod: v.PandemicPeriod}
	})
}
