package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// RollupSiteYears sums each site's intervals per (measure, calendar year).
// The list size is the denominator of the site's earliest interval in the
// year. Output is ordered by (measure, site_id, year).
func RollupSiteYears(rows []*domain.IntervalCount) []*domain.SiteYearSummary {
	type key struct {
		measure string
		siteID  int64
		year    int
	}
	byKey := make(map[key]*domain.SiteYearSummary)
	earliest := make(map[key]time.Time)

	for _, r := range rows {
		k := key{measure: r.Measure, siteID: r.SiteID, year: r.IntervalStart.Year()}
		s, ok := byKey[k]
		if !ok {
			s = &domain.SiteYearSummary{Measure: r.Measure, SiteID: r.SiteID, Year: k.year}
			byKey[k] = s
		}
		s.Numerator += r.Numerator
		s.Intervals++
		if first, seen := earliest[k]; !seen || r.IntervalStart.Before(first) {
			earliest[k] = r.IntervalStart
			s.ListSize = r.Denominator
		}
	}

	out := make([]*domain.SiteYearSummary, 0, len(byKey))
	for _, s := range byKey {
		s.Zero = s.Numerator == 0
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Measure != b.Measure {
			return a.Measure < b.Measure
		}
		if a.SiteID != b.SiteID {
			return a.SiteID < b.SiteID
		}
		return a.Year < b.Year
	})
	return out
}

// RollupNationalYears sums site-years to national scope per (measure, year).
// The rate is defined (possibly zero) whenever the summed list size is positive.
func RollupNationalYears(siteYears []*domain.SiteYearSummary) []*domain.NationalYearSummary {
	type key struct {
		measure string
		year    int
	}
	byKey := make(map[key]*domain.NationalYearSummary)
	for _, s := range siteYears {
		k := key{measure: s.Measure, year: s.Year}
		n, ok := byKey[k]
		if !ok {
			n = &domain.NationalYearSummary{Measure: s.Measure, Year: s.Year}
			byKey[k] = n
		}
		n.Numerator += s.Numerator
		n.ListSize += s.ListSize
		n.Sites++
		if s.Zero {
			n.SitesZero++
		}
	}

	out := make([]*domain.NationalYearSummary, 0, len(byKey))
	for _, n := range byKey {
		if n.ListSize > 0 {
			n.RatePer1000 = 1000 * float64(n.Numerator) / float64(n.ListSize)
		}
		n.PropSitesZero = float64(n.SitesZero) / float64(n.Sites)
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Measure != out[j].Measure {
			return out[i].Measure < out[j].Measure
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// StoreNationalYears persists national-year summaries.
// Returns storage.ErrDuplicateKey if a summary already exists (append-only).
func StoreNationalYears(ctx context.Context, store storage.NationalYearStore, rows []*domain.NationalYearSummary) error {
	if store == nil || len(rows) == 0 {
		return nil
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		return fmt.Errorf("store national year summaries: %w", err)
	}
	return nil
}

// WeeklyTotal is the national sum of one measure over one interval.
type WeeklyTotal struct {
	Measure       string
	IntervalStart time.Time
	Numerator     int64
	Denominator   int64
	RatePer100k   float64
}

// NationalWeekly sums all sites per (measure, interval_start). Used as a
// sanity check that every measure produced non-zero totals.
func NationalWeekly(rows []*domain.IntervalCount) []*WeeklyTotal {
	type key struct {
		measure string
		start   time.Time
	}
	byKey := make(map[key]*WeeklyTotal)
	for _, r := range rows {
		k := key{measure: r.Measure, start: r.IntervalStart}
		w, ok := byKey[k]
		if !ok {
			w = &WeeklyTotal{Measure: r.Measure, IntervalStart: r.IntervalStart}
			byKey[k] = w
		}
		w.Numerator += r.Numerator
		w.Denominator += r.Denominator
	}

	out := make([]*WeeklyTotal, 0, len(byKey))
	for _, w := range byKey {
		if w.Denominator > 0 {
			w.RatePer100k = 100000 * float64(w.Numerator) / float64(w.Denominator)
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Measure != out[j].Measure {
			return out[i].Measure < out[j].Measure
		}
		return out[i].IntervalStart.Before(out[j].IntervalStart)
	})
	return out
}
