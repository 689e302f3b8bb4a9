// Package metrics rolls normalized intervals and test results up to national
// summaries per (measure, season, pandemic_period) and per calendar year.
package metrics

import (
	"context"
	"fmt"
	"sort"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/normalization"
	"seasonality-lab/internal/storage"
)

// Input holds the tables the aggregator reads. None of them is modified.
type Input struct {
	Classified       []*domain.ClassifiedInterval // unfiltered, for counts and conservation
	SiteFiltered     []*domain.NormalizedInterval // site-scope zero-baseline filter applied
	NationalFiltered []*domain.NormalizedInterval // national-scope zero-baseline filter applied
	Baselines        *normalization.BaselineSet
	Significance     []*domain.SignificanceResult
}

// Aggregator computes national summaries.
type Aggregator struct {
	summaryStore storage.AggregateSummaryStore
}

// NewAggregator creates a new aggregator. summaryStore may be nil when the
// summaries are not persisted.
func NewAggregator(summaryStore storage.AggregateSummaryStore) *Aggregator {
	return &Aggregator{summaryStore: summaryStore}
}

// groupAcc accumulates one (measure, season, pandemic_period) group.
type groupAcc struct {
	siteNumerators map[int64]int64
	numerator      int64
	denominator    int64

	// national-filtered rows
	filteredNumerator   int64
	filteredDenominator int64
	expectedRolling     float64 // sum of denominator * national rolling baseline rate

	// rows with a non-zero national anchor baseline
	anchorNumerator   int64
	anchorDenominator int64
	expectedAnchor    float64

	// site-filtered rows by site
	siteRows map[int64][]*domain.NormalizedInterval

	tests       int
	significant int
	sigAdj      int
}

// Summarize builds one AggregateSummary per (measure, season, pandemic_period)
// observed in the classified rows, excluding unmapped months. Results are
// ordered by group key.
func (a *Aggregator) Summarize(in *Input) []*domain.AggregateSummary {
	groups := make(map[domain.GroupKey]*groupAcc)
	get := func(k domain.GroupKey) *groupAcc {
		g, ok := groups[k]
		if !ok {
			g = &groupAcc{
				siteNumerators: make(map[int64]int64),
				siteRows:       make(map[int64][]*domain.NormalizedInterval),
			}
			groups[k] = g
		}
		return g
	}

	for _, r := range in.Classified {
		if r.Season == domain.SeasonNone {
			continue
		}
		g := get(groupOf(r))
		g.siteNumerators[r.SiteID] += r.Numerator
		g.numerator += r.Numerator
		g.denominator += r.Denominator

		// The anchor pool depends only on the anchor baseline, not on the
		// rolling filter applied to NationalFiltered.
		if nb, err := in.Baselines.National(domain.BaselineAnchor, r.Measure, r.ReferenceYear); err == nil && !nb.IsZero() {
			g.anchorNumerator += r.Numerator
			g.anchorDenominator += r.Denominator
			g.expectedAnchor += float64(r.Denominator) * nb.Rate()
		}
	}

	for _, r := range in.NationalFiltered {
		g, ok := groups[groupOf(&r.ClassifiedInterval)]
		if !ok {
			continue
		}
		if nb, err := in.Baselines.National(domain.BaselineRolling, r.Measure, r.ReferenceYear); err == nil && !nb.IsZero() {
			g.filteredNumerator += r.Numerator
			g.filteredDenominator += r.Denominator
			g.expectedRolling += float64(r.Denominator) * nb.Rate()
		}
	}

	for _, r := range in.SiteFiltered {
		if g, ok := groups[groupOf(&r.ClassifiedInterval)]; ok {
			g.siteRows[r.SiteID] = append(g.siteRows[r.SiteID], r)
		}
	}

	for _, s := range in.Significance {
		g, ok := groups[s.Group()]
		if !ok || !s.Defined() {
			continue
		}
		g.tests++
		if s.Significant {
			g.significant++
		}
		if s.SignificantAdj {
			g.sigAdj++
		}
	}

	out := make([]*domain.AggregateSummary, 0, len(groups))
	for k, g := range groups {
		out = append(out, g.summary(k))
	}
	sortSummaries(out)
	return out
}

func (g *groupAcc) summary(k domain.GroupKey) *domain.AggregateSummary {
	s := &domain.AggregateSummary{
		Measure:           k.Measure,
		Season:            k.Season,
		PandemicPeriod:    k.PandemicPeriod,
		SitesContributing: len(g.siteNumerators),
		PooledNumerator:   g.numerator,
		PooledDenominator: g.denominator,
	}
	for _, n := range g.siteNumerators {
		if n == 0 {
			s.SitesZeroNumerator++
		}
	}
	if s.SitesContributing > 0 {
		s.PropSitesZero = float64(s.SitesZeroNumerator) / float64(s.SitesContributing)
	}
	if g.denominator > 0 {
		s.PooledRate = 1000 * float64(g.numerator) / float64(g.denominator)
	}

	// pooled rate vs denominator-weighted national baseline rate
	if g.filteredDenominator > 0 && g.expectedRolling > 0 {
		s.PooledRRRolling = ratio(1000*float64(g.filteredNumerator), g.expectedRolling)
		s.PooledRDRolling = domain.Float((1000*float64(g.filteredNumerator) - g.expectedRolling) / float64(g.filteredDenominator))
	}
	if g.anchorDenominator > 0 && g.expectedAnchor > 0 {
		s.PooledRRAnchor = ratio(1000*float64(g.anchorNumerator), g.expectedAnchor)
		s.PooledRDAnchor = domain.Float((1000*float64(g.anchorNumerator) - g.expectedAnchor) / float64(g.anchorDenominator))
	}

	s.SiteRRRolling = siteWeighted(g.siteRows, func(r *domain.NormalizedInterval) *float64 { return r.RRRolling })
	s.SiteRDRolling = siteWeighted(g.siteRows, func(r *domain.NormalizedInterval) *float64 { return r.RDRolling })
	s.SiteRRAnchor = siteWeighted(g.siteRows, func(r *domain.NormalizedInterval) *float64 { return r.RRAnchor })
	s.SiteRDAnchor = siteWeighted(g.siteRows, func(r *domain.NormalizedInterval) *float64 { return r.RDAnchor })

	s.TestsDefined = g.tests
	s.SitesSignificant = g.significant
	s.SitesSignificantAdj = g.sigAdj
	s.PropSignificant = ratio(float64(g.significant), float64(g.tests))
	s.PropSignificantAdj = ratio(float64(g.sigAdj), float64(g.tests))
	return s
}

// siteWeighted averages each site's mean of the selected value, then averages
// across sites. Sites without a defined value do not contribute.
func siteWeighted(siteRows map[int64][]*domain.NormalizedInterval, get func(*domain.NormalizedInterval) *float64) *float64 {
	siteMeans := make([]float64, 0, len(siteRows))
	for _, site := range sortedSites(siteRows) {
		if m := meanOf(definedValues(siteRows[site], get)); m != nil {
			siteMeans = append(siteMeans, *m)
		}
	}
	return meanOf(siteMeans)
}

func sortedSites[V any](m map[int64]V) []int64 {
	sites := make([]int64, 0, len(m))
	for s := range m {
		sites = append(sites, s)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	return sites
}

func groupOf(r *domain.ClassifiedInterval) domain.GroupKey {
	return domain.GroupKey{Measure: r.Measure, Season: r.Season, PandemicPeriod: r.PandemicPeriod}
}

func compareGroupKeys(a, b domain.GroupKey) bool {
	if a.Measure != b.Measure {
		return a.Measure < b.Measure
	}
	if a.Season != b.Season {
		return a.Season < b.Season
	}
	return a.PandemicPeriod < b.PandemicPeriod
}

func sortSummaries(rows []*domain.AggregateSummary) {
	sortBy(rows, func(s *domain.AggregateSummary) domain.GroupKey {
		return domain.GroupKey{Measure: s.Measure, Season: s.Season, PandemicPeriod: s.PandemicPeriod}
	})
}

// sortBy orders rows by their group key.
func sortBy[T any](rows []T, key func(T) domain.GroupKey) {
	sort.Slice(rows, func(i, j int) bool {
		return compareGroupKeys(key(rows[i]), key(rows[j]))
	})
}

// ComputeAndStore summarizes and persists the summaries.
// Returns storage.ErrDuplicateKey if a summary already exists (append-only).
func (a *Aggregator) ComputeAndStore(ctx context.Context, in *Input) ([]*domain.AggregateSummary, error) {
	summaries := a.Summarize(in)
	if a.summaryStore == nil || len(summaries) == 0 {
		return summaries, nil
	}
	if err := a.summaryStore.InsertBulk(ctx, summaries); err != nil {
		return summaries, fmt.Errorf("store aggregate summaries: %w", err)
	}
	return summaries, nil
}
