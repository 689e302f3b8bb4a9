package calendar

import (
	"testing"
	"time"

	"seasonality-lab/internal/config"
	"seasonality-lab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifier_Labels(t *testing.T) {
	c := NewClassifier(config.Default())

	tests := []struct {
		start    time.Time
		season   domain.Season
		pandemic domain.PandemicPeriod
		refYear  int
	}{
		{day(2019, time.June, 3), "Jun-Jul", domain.PandemicBefore, 2019},
		{day(2020, time.January, 6), "Jan-Feb", domain.PandemicBefore, 2019},
		{day(2020, time.April, 6), domain.SeasonNone, domain.PandemicDuring, 2019},
		{day(2021, time.July, 19), "Jun-Jul", domain.PandemicDuring, 2021},
		{day(2021, time.November, 1), "Nov-Dec", domain.PandemicAfter, 2021},
		{day(2023, time.August, 7), domain.SeasonNone, domain.PandemicAfter, 2023},
	}

	for _, tt := range tests {
		row := &domain.IntervalCount{Measure: "flu", SiteID: 1, IntervalStart: tt.start, Numerator: 6, Denominator: 1200}
		ci, ok := c.ClassifyOne(row)
		if !ok {
			t.Fatalf("%s: unexpectedly excluded", tt.start.Format("2006-01-02"))
		}
		if ci.Season != tt.season {
			t.Errorf("%s: season = %q, want %q", tt.start.Format("2006-01-02"), ci.Season, tt.season)
		}
		if ci.PandemicPeriod != tt.pandemic {
			t.Errorf("%s: pandemic = %q, want %q", tt.start.Format("2006-01-02"), ci.PandemicPeriod, tt.pandemic)
		}
		if ci.ReferenceYear != tt.refYear {
			t.Errorf("%s: reference year = %d, want %d", tt.start.Format("2006-01-02"), ci.ReferenceYear, tt.refYear)
		}
		if ci.Numerator != 6 || ci.Denominator != 1200 {
			t.Errorf("counts not carried through: %+v", ci.IntervalCount)
		}
	}
}

func TestClassifier_ExcludesBlackout(t *testing.T) {
	c := NewClassifier(config.Default())

	rows := []*domain.IntervalCount{
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, time.December, 12), Numerator: 6, Denominator: 600},
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, time.December, 19), Numerator: 6, Denominator: 600},
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, time.December, 26), Numerator: 6, Denominator: 600},
		{Measure: "flu", SiteID: 1, IntervalStart: day(2023, time.January, 2), Numerator: 6, Denominator: 600},
	}

	res := c.Classify(rows)
	if res.Blackout != 2 {
		t.Errorf("Blackout = %d, want 2", res.Blackout)
	}
	if len(res.Intervals) != 2 {
		t.Fatalf("got %d intervals, want 2", len(res.Intervals))
	}
	if !res.Intervals[0].IntervalStart.Equal(rows[0].IntervalStart) || !res.Intervals[1].IntervalStart.Equal(rows[3].IntervalStart) {
		t.Errorf("input order not preserved")
	}
}

func TestClassifier_Total(t *testing.T) {
	c := NewClassifier(config.Default())
	// Every month of the year classifies without panicking, outside the blackout.
	for m := time.January; m <= time.December; m++ {
		row := &domain.IntervalCount{Measure: "m", SiteID: 1, IntervalStart: day(2022, m, 1), Numerator: 0, Denominator: 6}
		if _, ok := c.ClassifyOne(row); !ok {
			t.Errorf("month %s excluded", m)
		}
	}
}
