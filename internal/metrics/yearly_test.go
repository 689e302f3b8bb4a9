package metrics

import (
	"testing"
	"time"

	"seasonality-lab/internal/domain"
)

func count(measure string, site int64, date string, num, den int64) *domain.IntervalCount {
	start, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return &domain.IntervalCount{Measure: measure, SiteID: site, IntervalStart: start, Numerator: num, Denominator: den}
}

func TestRollupYears(t *testing.T) {
	rows := []*domain.IntervalCount{
		count("flu", 1, "2023-03-06", 6, 1200),
		count("flu", 1, "2023-01-02", 12, 1100),
		count("flu", 1, "2024-01-01", 6, 1300),
		count("flu", 2, "2023-01-09", 0, 600),
	}

	siteYears := RollupSiteYears(rows)
	if len(siteYears) != 3 {
		t.Fatalf("Expected 3 site-years, got %d", len(siteYears))
	}
	first := siteYears[0]
	if first.SiteID != 1 || first.Year != 2023 || first.Numerator != 18 || first.Intervals != 2 {
		t.Errorf("Unexpected site-year: %+v", first)
	}
	if first.ListSize != 1100 {
		t.Errorf("Expected earliest list size 1100, got %d", first.ListSize)
	}

	national := RollupNationalYears(siteYears)
	if len(national) != 2 {
		t.Fatalf("Expected 2 national years, got %d", len(national))
	}
	n := national[0]
	if n.Year != 2023 || n.Numerator != 18 || n.ListSize != 1700 || n.Sites != 2 || n.SitesZero != 1 {
		t.Errorf("Unexpected national year: %+v", n)
	}
	if n.PropSitesZero != 0.5 {
		t.Errorf("Expected prop zero 0.5, got %v", n.PropSitesZero)
	}
	if n.RatePer1000 != 1000*18.0/1700 {
		t.Errorf("Unexpected rate %v", n.RatePer1000)
	}
}

func TestRollupNationalYears_AllZero(t *testing.T) {
	rows := []*domain.IntervalCount{
		count("flu", 1, "2023-01-02", 0, 1000),
		count("flu", 2, "2023-01-02", 0, 2000),
	}

	national := RollupNationalYears(RollupSiteYears(rows))

	if len(national) != 1 {
		t.Fatalf("Expected 1 national year, got %d", len(national))
	}
	if national[0].PropSitesZero != 1 || national[0].RatePer1000 != 0 {
		t.Errorf("Expected prop zero 1 and rate 0, got %v and %v", national[0].PropSitesZero, national[0].RatePer1000)
	}
}

func TestNationalWeekly(t *testing.T) {
	rows := []*domain.IntervalCount{
		count("flu", 1, "2023-01-02", 3, 1000),
		count("flu", 2, "2023-01-02", 2, 4000),
		count("ari", 1, "2023-01-09", 1, 1000),
	}

	out := NationalWeekly(rows)

	if len(out) != 2 || out[0].Measure != "ari" {
		t.Fatalf("Unexpected totals: %d", len(out))
	}
	if out[1].Numerator != 5 || out[1].Denominator != 5000 || out[1].RatePer100k != 100 {
		t.Errorf("Unexpected flu total: %+v", out[1])
	}
}
