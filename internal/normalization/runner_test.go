package normalization

import (
	"errors"
	"math"
	"testing"
	"time"

	"seasonality-lab/internal/domain"
)

const ref = domain.Season("Jun-Jul")

func interval(measure string, site int64, date string, season domain.Season, refYear int, num, den int64) *domain.ClassifiedInterval {
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

func TestBuildBaselines_RollingMeanRate(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		interval("flu", 1, "2022-06-06", ref, 2022, 10, 1000),
		interval("flu", 1, "2022-06-13", ref, 2022, 30, 1000),
		interval("flu", 1, "2022-09-05", "Sep-Oct", 2022, 50, 1000),
	}

	set := BuildBaselines(rows, ref)

	rec, err := set.Lookup(domain.BaselineRolling, "flu", 1, 2022)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec.MeanRate != 20 {
		t.Errorf("Expected mean rate 20, got %v", rec.MeanRate)
	}
	if rec.SumNumerator != 40 || rec.SumDenominator != 2000 || rec.IntervalCount != 2 {
		t.Errorf("Unexpected sums: %+v", rec)
	}
}

func TestBuildBaselines_AbsentIsNotZero(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		interval("flu", 1, "2022-09-05", "Sep-Oct", 2022, 50, 1000),
	}

	set := BuildBaselines(rows, ref)

	if _, err := set.Lookup(domain.BaselineRolling, "flu", 1, 2022); !errors.Is(err, ErrMissingBaseline) {
		t.Errorf("Expected ErrMissingBaseline, got %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Expected no baselines, got %d", set.Len())
	}
}

func TestBuildBaselines_AnchorIsEarliestYear(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		interval("flu", 1, "2023-06-05", ref, 2023, 40, 1000),
		interval("flu", 1, "2021-06-07", ref, 2021, 10, 1000),
		interval("flu", 1, "2022-06-06", ref, 2022, 20, 1000),
	}

	set := BuildBaselines(rows, ref)

	anchor, err := set.Lookup(domain.BaselineAnchor, "flu", 1, 2023)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if anchor.ReferenceYear != 2021 || anchor.MeanRate != 10 {
		t.Errorf("Expected anchor from 2021 with rate 10, got year %d rate %v", anchor.ReferenceYear, anchor.MeanRate)
	}
	if anchor.Kind != domain.BaselineAnchor {
		t.Errorf("Expected anchor kind, got %s", anchor.Kind)
	}

	records := set.Records()
	if len(records) != 4 {
		t.Fatalf("Expected 3 rolling + 1 anchor records, got %d", len(records))
	}
	if records[0].Kind != domain.BaselineAnchor {
		t.Errorf("Expected anchor records first, got %s", records[0].Kind)
	}

	nb, err := set.National(domain.BaselineAnchor, "flu", 2023)
	if err != nil {
		t.Fatalf("National failed: %v", err)
	}
	if nb.ReferenceYear != 2021 || nb.Rate() != 10 {
		t.Errorf("Expected national anchor 2021 rate 10, got %d %v", nb.ReferenceYear, nb.Rate())
	}
}

func TestNormalize_RateEqualToBaseline(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		interval("flu", 1, "2022-06-06", ref, 2022, 20, 1000),
		interval("flu", 1, "2022-09-05", "Sep-Oct", 2022, 40, 2000),
	}

	out := Normalize(rows, BuildBaselines(rows, ref))

	for _, n := range out {
		if n.RRRolling == nil || *n.RRRolling != 1.0 {
			t.Errorf("Expected RR 1.0, got %v", n.RRRolling)
		}
		if n.RDRolling == nil || *n.RDRolling != 0.0 {
			t.Errorf("Expected RD 0.0, got %v", n.RDRolling)
		}
	}
}

func TestNormalize_ScenarioB(t *testing.T) {
	var rows []*domain.ClassifiedInterval
	for i := 0; i < 10; i++ {
		rows = append(rows, interval("flu", 1, "2022-06-06", ref, 2022, 10, 100))
		rows = append(rows, interval("flu", 1, "2022-09-05", "Sep-Oct", 2022, 30, 100))
	}

	out := Normalize(rows, BuildBaselines(rows, ref))

	target := out[1]
	if target.RatePer1000 != 300 {
		t.Errorf("Expected target rate 300, got %v", target.RatePer1000)
	}
	if target.RRRolling == nil || math.Abs(*target.RRRolling-3.0) > 1e-9 {
		t.Errorf("Expected RR 3.0, got %v", target.RRRolling)
	}
}

func TestNormalize_ZeroAndMissingBaselineUndefined(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		interval("flu", 1, "2022-06-06", ref, 2022, 0, 1000),
		interval("flu", 1, "2022-09-05", "Sep-Oct", 2022, 5, 1000),
		interval("flu", 2, "2022-09-05", "Sep-Oct", 2022, 5, 1000),
	}

	out := Normalize(rows, BuildBaselines(rows, ref))

	zero := out[1]
	if zero.BaselineRolling == nil || *zero.BaselineRolling != 0 {
		t.Errorf("Expected present zero baseline, got %v", zero.BaselineRolling)
	}
	if zero.RRRolling != nil || zero.RDRolling != nil {
		t.Errorf("Expected undefined RR/RD for zero baseline, got %v %v", zero.RRRolling, zero.RDRolling)
	}

	missing := out[2]
	if missing.BaselineRolling != nil || missing.RRRolling != nil || missing.RRAnchor != nil {
		t.Errorf("Expected undefined baseline and ratios, got %+v", missing)
	}
	if missing.RatePer1000 != 5 {
		t.Errorf("Expected rate 5, got %v", missing.RatePer1000)
	}
}

func TestFilterZeroBaselines_Scopes(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		// site 1 has a zero reference season in 2022, site 2 does not
		interval("flu", 1, "2022-06-06", ref, 2022, 0, 1000),
		interval("flu", 1, "2022-09-05", "Sep-Oct", 2022, 5, 1000),
		interval("flu", 1, "2023-01-02", "Jan-Feb", 2022, 5, 1000),
		interval("flu", 2, "2022-06-06", ref, 2022, 6, 1000),
		interval("flu", 2, "2022-09-05", "Sep-Oct", 2022, 6, 1000),
		// no reference season at all in 2023
		interval("flu", 2, "2023-09-04", "Sep-Oct", 2023, 6, 1000),
	}
	set := BuildBaselines(rows, ref)
	normalized := Normalize(rows, set)

	site, removed := FilterZeroBaselines(normalized, set, ScopeSite)
	if removed != 4 || len(site) != 2 {
		t.Errorf("Site scope: expected 4 removed and 2 kept, got %d and %d", removed, len(site))
	}
	for _, r := range site {
		if r.SiteID != 2 || r.ReferenceYear != 2022 {
			t.Errorf("Site scope kept unexpected row %d/%d", r.SiteID, r.ReferenceYear)
		}
	}

	national, removed := FilterZeroBaselines(normalized, set, ScopeNational)
	if removed != 1 || len(national) != 5 {
		t.Errorf("National scope: expected 1 removed and 5 kept, got %d and %d", removed, len(national))
	}
}

func TestRunner_Run(t *testing.T) {
	rows := []*domain.ClassifiedInterval{
		interval("flu", 1, "2022-06-06", ref, 2022, 0, 1000),
		interval("flu", 1, "2022-09-05", "Sep-Oct", 2022, 5, 1000),
		interval("flu", 2, "2022-09-05", "Sep-Oct", 2022, 5, 1000),
	}
	ledger := domain.NewExclusionLedger()

	res := NewRunner(ref, nil).Run(rows, ledger)

	if len(res.Normalized) != 3 {
		t.Errorf("Expected 3 normalized rows, got %d", len(res.Normalized))
	}
	if res.MissingBaseline != 1 {
		t.Errorf("Expected 1 row without baseline, got %d", res.MissingBaseline)
	}
	if got := ledger.Count(StageFilterSite, domain.ExclusionMissingBaseline); got != 3 {
		t.Errorf("Expected 3 site-scope exclusions, got %d", got)
	}
	if got := ledger.Count(StageFilterNational, domain.ExclusionMissingBaseline); got != 3 {
		t.Errorf("Expected 3 national-scope exclusions, got %d", got)
	}
}
