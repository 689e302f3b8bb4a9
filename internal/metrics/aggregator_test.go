package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/normalization"
	"seasonality-lab/internal/storage"
	"seasonality-lab/internal/storage/memory"
)

const ref = domain.Season("Jun-Jul")

func classified(measure string, site int64, date string, season domain.Season, refYear int, num, den int64) *domain.ClassifiedInterval {
	start, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return &domain.ClassifiedInterval{
		IntervalCount: domain.IntervalCount{
			Measure:       measure,
			SiteID:        site,
			IntervalStart: start,
			Numerator:     num,
			Denominator:   den,
		},
		Season:         season,
		PandemicPeriod: domain.PandemicAfter,
		ReferenceYear:  refYear,
	}
}

func buildInput(rows []*domain.ClassifiedInterval, sig []*domain.SignificanceResult) *Input {
	res := normalization.NewRunner(ref, nil).Run(rows, nil)
	return &Input{
		Classified:       rows,
		SiteFiltered:     res.SiteFiltered,
		NationalFiltered: res.NationalFiltered,
		Baselines:        res.Baselines,
		Significance:     sig,
	}
}

func findSummary(t *testing.T, summaries []*domain.AggregateSummary, season domain.Season) *domain.AggregateSummary {
	t.Helper()
	for _, s := range summaries {
		if s.Season == season {
			return s
		}
	}
	t.Fatalf("no summary for season %s", season)
	return nil
}

func TestSummarize_Conservation(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		classified("flu", 1, "2022-06-06", ref, 2022, 6, 600),
		classified("flu", 1, "2022-09-05", "Sep-Oct", 2022, 12, 600),
		classified("flu", 1, "2022-09-12", "Sep-Oct", 2022, 18, 600),
		classified("flu", 2, "2022-06-06", ref, 2022, 0, 1200),
		classified("flu", 2, "2022-09-05", "Sep-Oct", 2022, 24, 1200),
		classified("flu", 3, "2022-09-05", "Sep-Oct", 2022, 0, 300),
	}

	summaries := NewAggregator(nil).Summarize(buildInput(rows, nil))

	s := findSummary(t, summaries, "Sep-Oct")
	var siteSum int64
	for _, r := range rows {
		if r.Season == "Sep-Oct" {
			siteSum += r.Numerator
		}
	}
	if s.PooledNumerator != siteSum {
		t.Errorf("Expected pooled numerator %d, got %d", siteSum, s.PooledNumerator)
	}
	if s.PooledDenominator != 3300 {
		t.Errorf("Expected pooled denominator 3300, got %d", s.PooledDenominator)
	}
	if s.SitesContributing != 3 || s.SitesZeroNumerator != 1 {
		t.Errorf("Expected 3 sites with 1 zero, got %d and %d", s.SitesContributing, s.SitesZeroNumerator)
	}
	if math.Abs(s.PropSitesZero-1.0/3.0) > 1e-12 {
		t.Errorf("Expected prop zero 1/3, got %v", s.PropSitesZero)
	}
	if s.PropSignificant != nil {
		t.Errorf("Expected nil proportion without tests, got %v", *s.PropSignificant)
	}
}

func TestSummarize_ScenarioA(t *testing.T) {
	var rows []*domain.ClassifiedInterval
	for site := int64(1); site <= 3; site++ {
		rows = append(rows,
			classified("flu", site, "2023-06-05", ref, 2023, 0, 1000),
			classified("flu", site, "2023-09-04", "Sep-Oct", 2023, 0, 1000),
		)
	}
	sig := []*domain.SignificanceResult{
		{Measure: "flu", Season: "Sep-Oct", PandemicPeriod: domain.PandemicAfter, SiteID: 1},
	}

	summaries := NewAggregator(nil).Summarize(buildInput(rows, sig))

	s := findSummary(t, summaries, "Sep-Oct")
	if s.PooledNumerator != 0 {
		t.Errorf("Expected zero pooled numerator, got %d", s.PooledNumerator)
	}
	if s.PooledRRRolling != nil || s.PooledRRAnchor != nil || s.SiteRRRolling != nil {
		t.Error("Expected undefined RR, not zero")
	}
	if s.SitesSignificant != 0 || s.SitesSignificantAdj != 0 {
		t.Errorf("Expected no significant sites, got %d/%d", s.SitesSignificant, s.SitesSignificantAdj)
	}
	if s.PropSitesZero != 1 {
		t.Errorf("Expected prop zero 1, got %v", s.PropSitesZero)
	}
	if s.TestsDefined != 0 || s.PropSignificant != nil {
		t.Errorf("Expected undefined tests excluded from the denominator, got %d", s.TestsDefined)
	}
}

func TestSummarize_AnchorPoolIgnoresRollingFilter(t *testing.T) {
	// 2022 has a zero national rolling baseline; the 2021 anchor is 10/1000.
	rows := []*domain.ClassifiedInterval{
		classified("flu", 1, "2021-06-07", ref, 2021, 6, 600),
		classified("flu", 1, "2021-09-06", "Sep-Oct", 2021, 12, 600),
		classified("flu", 1, "2022-06-06", ref, 2022, 0, 600),
		classified("flu", 1, "2022-09-05", "Sep-Oct", 2022, 18, 600),
	}

	summaries := NewAggregator(nil).Summarize(buildInput(rows, nil))

	s := findSummary(t, summaries, "Sep-Oct")
	if s.PooledRRRolling == nil || math.Abs(*s.PooledRRRolling-2) > 1e-9 {
		t.Errorf("Expected rolling RR 2 from 2021 rows only, got %v", s.PooledRRRolling)
	}
	if s.PooledRRAnchor == nil || math.Abs(*s.PooledRRAnchor-2.5) > 1e-9 {
		t.Errorf("Expected anchor RR 2.5 over both years, got %v", s.PooledRRAnchor)
	}
	if s.PooledRDAnchor == nil || math.Abs(*s.PooledRDAnchor-15) > 1e-9 {
		t.Errorf("Expected anchor RD 15, got %v", s.PooledRDAnchor)
	}
}

func TestSummarize_ScenarioD(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		// small site: rate 50 -> 100
		classified("flu", 1, "2022-06-06", ref, 2022, 5, 100),
		classified("flu", 1, "2022-09-05", "Sep-Oct", 2022, 20, 200),
		// large site: rate 10 -> 20
		classified("flu", 2, "2022-06-06", ref, 2022, 100, 10000),
		classified("flu", 2, "2022-09-05", "Sep-Oct", 2022, 200, 10000),
	}

	summaries := NewAggregator(nil).Summarize(buildInput(rows, nil))
	s := findSummary(t, summaries, "Sep-Oct")

	if s.SiteRRRolling == nil || math.Abs(*s.SiteRRRolling-2.0) > 1e-9 {
		t.Fatalf("Expected site-weighted RR 2.0, got %v", s.SiteRRRolling)
	}
	if s.PooledRRRolling == nil {
		t.Fatal("Expected pooled RR to be defined")
	}
	if math.Abs(*s.PooledRRRolling-*s.SiteRRRolling) < 1e-6 {
		t.Errorf("Expected weightings to diverge, both %v", *s.PooledRRRolling)
	}
	// pooled rate sits near the large site's rate
	if math.Abs(s.PooledRate-20) > math.Abs(s.PooledRate-100) {
		t.Errorf("Expected pooled rate dominated by large site, got %v", s.PooledRate)
	}
	wantRR := 1000 * 220.0 / (10200 * 1000 * 105.0 / 10100)
	if math.Abs(*s.PooledRRRolling-wantRR) > 1e-9 {
		t.Errorf("Expected pooled RR %v, got %v", wantRR, *s.PooledRRRolling)
	}
}

func TestSummarize_SignificanceProportions(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		classified("flu", 1, "2022-06-06", ref, 2022, 6, 600),
		classified("flu", 1, "2022-09-05", "Sep-Oct", 2022, 12, 600),
	}
	group := func(site int64, p float64, sig, adj bool) *domain.SignificanceResult {
		return &domain.SignificanceResult{
			Measure: "flu", Season: "Sep-Oct", PandemicPeriod: domain.PandemicAfter, SiteID: site,
			PValue: domain.Float(p), PValueAdjusted: domain.Float(p), Significant: sig, SignificantAdj: adj,
		}
	}
	sig := []*domain.SignificanceResult{
		group(1, 0.01, true, true),
		group(2, 0.03, true, false),
		group(3, 0.5, false, false),
		group(4, 0.9, false, false),
	}

	summaries := NewAggregator(nil).Summarize(buildInput(rows, sig))
	s := findSummary(t, summaries, "Sep-Oct")

	if s.TestsDefined != 4 || s.SitesSignificant != 2 || s.SitesSignificantAdj != 1 {
		t.Errorf("Unexpected counts: %d %d %d", s.TestsDefined, s.SitesSignificant, s.SitesSignificantAdj)
	}
	if *s.PropSignificant != 0.5 || *s.PropSignificantAdj != 0.25 {
		t.Errorf("Unexpected proportions: %v %v", *s.PropSignificant, *s.PropSignificantAdj)
	}
}

func TestSummarize_SkipsUnmappedMonths(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		classified("flu", 1, "2022-06-06", ref, 2022, 6, 600),
		classified("flu", 1, "2022-08-01", domain.SeasonNone, 2022, 6, 600),
	}

	summaries := NewAggregator(nil).Summarize(buildInput(rows, nil))

	if len(summaries) != 1 || summaries[0].Season != ref {
		t.Errorf("Expected only the reference-season summary, got %d", len(summaries))
	}
}

func TestComputeAndStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	rows := []*domain.ClassifiedInterval{
		classified("flu", 1, "2022-06-06", ref, 2022, 6, 600),
	}
	aggregator := NewAggregator(memory.NewAggregateSummaryStore())

	if _, err := aggregator.ComputeAndStore(ctx, buildInput(rows, nil)); err != nil {
		t.Fatalf("First ComputeAndStore failed: %v", err)
	}
	_, err := aggregator.ComputeAndStore(ctx, buildInput(rows, nil))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}
