// Package normalization builds reference-season baselines, joins them to
// classified intervals and removes strata without a usable baseline.
package normalization

import (
	"errors"
	"sort"

	"seasonality-lab/internal/domain"
)

// ErrMissingBaseline is returned when a key has no reference-season data.
var ErrMissingBaseline = errors.New("missing baseline")

type siteKey struct {
	measure string
	siteID  int64
}

type nationalKey struct {
	measure       string
	referenceYear int
}

// NationalBaseline is the reference-season rate of one measure and reference
// year pooled over all sites.
type NationalBaseline struct {
	Measure        string
	ReferenceYear  int
	SumNumerator   int64
	SumDenominator int64
}

// Rate returns 1000 * summed numerator / summed denominator.
func (n *NationalBaseline) Rate() float64 {
	if n.SumDenominator == 0 {
		return 0
	}
	return 1000 * float64(n.SumNumerator) / float64(n.SumDenominator)
}

// IsZero reports whether the baseline cannot serve as a ratio denominator.
func (n *NationalBaseline) IsZero() bool {
	return n.SumNumerator == 0 || n.SumDenominator == 0
}

// BaselineSet holds every baseline built from one classified table.
// Absent keys have no entry; a present entry may still be zero.
type BaselineSet struct {
	referenceSeason domain.Season

	rolling  map[domain.BaselineKey]*domain.BaselineRecord
	anchor   map[siteKey]*domain.BaselineRecord
	national map[nationalKey]*NationalBaseline
	// earliest national reference year per measure
	nationalAnchor map[string]int
}

// BuildBaselines groups reference-season rows by (measure, site, reference_year)
// and derives the rolling, anchor and national baselines.
func BuildBaselines(rows []*domain.ClassifiedInterval, referenceSeason domain.Season) *BaselineSet {
	set := &BaselineSet{
		referenceSeason: referenceSeason,
		rolling:         make(map[domain.BaselineKey]*domain.BaselineRecord),
		anchor:          make(map[siteKey]*domain.BaselineRecord),
		national:        make(map[nationalKey]*NationalBaseline),
		nationalAnchor:  make(map[string]int),
	}

	rateSums := make(map[domain.BaselineKey]float64)
	for _, r := range rows {
		if r.Season != referenceSeason {
			continue
		}
		key := domain.BaselineKey{Measure: r.Measure, SiteID: r.SiteID, ReferenceYear: r.ReferenceYear}
		rec, ok := set.rolling[key]
		if !ok {
			rec = &domain.BaselineRecord{
				Measure:       r.Measure,
				SiteID:        r.SiteID,
				ReferenceYear: r.ReferenceYear,
				Kind:          domain.BaselineRolling,
			}
			set.rolling[key] = rec
		}
		rec.SumNumerator += r.Numerator
		rec.SumDenominator += r.Denominator
		rec.IntervalCount++
		rateSums[key] += r.RatePer1000()

		nk := nationalKey{measure: r.Measure, referenceYear: r.ReferenceYear}
		nb, ok := set.national[nk]
		if !ok {
			nb = &NationalBaseline{Measure: r.Measure, ReferenceYear: r.ReferenceYear}
			set.national[nk] = nb
		}
		nb.SumNumerator += r.Numerator
		nb.SumDenominator += r.Denominator
	}

	for key, rec := range set.rolling {
		rec.MeanRate = rateSums[key] / float64(rec.IntervalCount)

		sk := siteKey{measure: key.Measure, siteID: key.SiteID}
		if cur, ok := set.anchor[sk]; !ok || rec.ReferenceYear < cur.ReferenceYear {
			anchor := *rec
			anchor.Kind = domain.BaselineAnchor
			set.anchor[sk] = &anchor
		}
	}

	for nk := range set.national {
		if cur, ok := set.nationalAnchor[nk.measure]; !ok || nk.referenceYear < cur {
			set.nationalAnchor[nk.measure] = nk.referenceYear
		}
	}
	return set
}

// ReferenceSeason returns the season the baselines were built from.
func (s *BaselineSet) ReferenceSeason() domain.Season {
	return s.referenceSeason
}

// Lookup returns the baseline of the given kind. The reference year is
// ignored for anchor baselines. Returns ErrMissingBaseline when absent.
func (s *BaselineSet) Lookup(kind domain.BaselineKind, measure string, siteID int64, referenceYear int) (*domain.BaselineRecord, error) {
	var rec *domain.BaselineRecord
	switch kind {
	case domain.BaselineRolling:
		rec = s.rolling[domain.BaselineKey{Measure: measure, SiteID: siteID, ReferenceYear: referenceYear}]
	case domain.BaselineAnchor:
		rec = s.anchor[siteKey{measure: measure, siteID: siteID}]
	}
	if rec == nil {
		return nil, ErrMissingBaseline
	}
	return rec, nil
}

// National returns the all-site baseline of the given kind for a measure.
// For anchor baselines the earliest reference year of the measure is used.
func (s *BaselineSet) National(kind domain.BaselineKind, measure string, referenceYear int) (*NationalBaseline, error) {
	if kind == domain.BaselineAnchor {
		year, ok := s.nationalAnchor[measure]
		if !ok {
			return nil, ErrMissingBaseline
		}
		referenceYear = year
	}
	nb := s.national[nationalKey{measure: measure, referenceYear: referenceYear}]
	if nb == nil {
		return nil, ErrMissingBaseline
	}
	return nb, nil
}

// Records returns both kinds of site baselines ordered by
// (kind, measure, site_id, reference_year).
func (s *BaselineSet) Records() []*domain.BaselineRecord {
	out := make([]*domain.BaselineRecord, 0, len(s.rolling)+len(s.anchor))
	for _, rec := range s.anchor {
		c := *rec
		out = append(out, &c)
	}
	for _, rec := range s.rolling {
		c := *rec
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Measure != b.Measure {
			return a.Measure < b.Measure
		}
		if a.SiteID != b.SiteID {
			return a.SiteID < b.SiteID
		}
		return a.ReferenceYear < b.ReferenceYear
	})
	return out
}

// Len returns the number of rolling baselines.
func (s *BaselineSet) Len() int {
	return len(s.rolling)
}
