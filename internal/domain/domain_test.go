package domain

import (
	"testing"
	"time"
)

func TestExclusionLedger(t *testing.T) {
	l := NewExclusionLedger()
	l.Add("normalize", ExclusionMissingBaseline, 3)
	l.Add("load", ExclusionNonPositiveDenom, 2)
	l.Add("load", ExclusionInvalidRow, 1)
	l.Add("filter_site", ExclusionMissingBaseline, 4)
	l.Add("load", ExclusionInvalidRow, 0)
	l.Add("load", ExclusionInvalidRow, -5)

	if got := l.Count("load", ExclusionInvalidRow); got != 1 {
		t.Errorf("expected 1 invalid row, got %d", got)
	}
	if got := l.Total(ExclusionMissingBaseline); got != 7 {
		t.Errorf("expected 7 missing-baseline exclusions, got %d", got)
	}
	if got := l.Count("trend", ExclusionInsufficientTrend); got != 0 {
		t.Errorf("unrecorded stage should count 0, got %d", got)
	}

	entries := l.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Stage != "filter_site" || entries[1].Reason != ExclusionInvalidRow || entries[2].Reason != ExclusionNonPositiveDenom {
		t.Errorf("entries not sorted by stage then reason: %+v", entries)
	}

	want := "filter_site/missing_baseline=4, load/invalid_row=1, load/non_positive_denom=2, normalize/missing_baseline=3"
	if got := l.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCompareIntervals(t *testing.T) {
	d := time.Date(2022, time.June, 6, 0, 0, 0, 0, time.UTC)
	base := &IntervalCount{Measure: "flu", SiteID: 2, IntervalStart: d}

	tests := []struct {
		name  string
		other *IntervalCount
		want  int
	}{
		{"same key", &IntervalCount{Measure: "flu", SiteID: 2, IntervalStart: d, Numerator: 9}, 0},
		{"measure first", &IntervalCount{Measure: "ari", SiteID: 9, IntervalStart: d.AddDate(1, 0, 0)}, 1},
		{"then site", &IntervalCount{Measure: "flu", SiteID: 3, IntervalStart: d.AddDate(-1, 0, 0)}, -1},
		{"then start", &IntervalCount{Measure: "flu", SiteID: 2, IntervalStart: d.AddDate(0, 0, 7)}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareIntervals(base, tt.other); got != tt.want {
				t.Errorf("CompareIntervals = %d, want %d", got, tt.want)
			}
			if got := CompareIntervals(tt.other, base); got != -tt.want {
				t.Errorf("reverse CompareIntervals = %d, want %d", got, -tt.want)
			}
		})
	}
}

func TestRatePer1000AndBaselineZero(t *testing.T) {
	r := &IntervalCount{Numerator: 30, Denominator: 1000}
	if got := r.RatePer1000(); got != 30 {
		t.Errorf("RatePer1000 = %v, want 30", got)
	}

	if !(&BaselineRecord{SumNumerator: 0, MeanRate: 0}).IsZero() {
		t.Error("zero-numerator baseline should be zero")
	}
	if (&BaselineRecord{SumNumerator: 6, MeanRate: 0.5}).IsZero() {
		t.Error("positive baseline reported as zero")
	}
}

func TestSignificanceResult_Defined(t *testing.T) {
	r := &SignificanceResult{Measure: "flu", Season: "Nov-Dec", PandemicPeriod: PandemicBefore}
	if r.Defined() {
		t.Error("result without p-value should be undefined")
	}
	r.PValue = Float(0.2)
	if !r.Defined() {
		t.Error("result with p-value should be defined")
	}
	if g := r.Group(); g.Measure != "flu" || g.Season != "Nov-Dec" || g.PandemicPeriod != PandemicBefore {
		t.Errorf("unexpected group %+v", g)
	}
}
