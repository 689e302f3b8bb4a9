package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"seasonality-lab/internal/domain"
)

// Output file names written by the pipeline.
const (
	FileReport        = "REPORT.md"
	FileBaselines     = "baselines.csv"
	FileNormalized    = "normalized_intervals.csv"
	FileSignificance  = "significance_results.csv"
	FileAggregates    = "aggregate_summaries.csv"
	FileVariance      = "variance_summaries.csv"
	FileTrends        = "trend_results.csv"
	FileNationalYears = "national_year_summaries.csv"
)

func renderCSV(header []string, rows [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	// strings.Builder writes never fail
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	return sb.String()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// fmtOptional renders undefined values as an empty field.
func fmtOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}

func fmtInt[T ~int | ~int64](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

func fmtBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func fmtDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// RenderBaselinesCSV renders baseline records.
func RenderBaselinesCSV(records []*domain.BaselineRecord) string {
	header := []string{"kind", "measure", "site_id", "reference_year", "mean_rate", "sum_numerator", "sum_denominator", "intervals"}
	rows := make([][]string, 0, len(records))
	for _, b := range records {
		rows = append(rows, []string{
			string(b.Kind), b.Measure, fmtInt(b.SiteID), fmtInt(b.ReferenceYear),
			fmtFloat(b.MeanRate), fmtInt(b.SumNumerator), fmtInt(b.SumDenominator), fmtInt(b.IntervalCount),
		})
	}
	return renderCSV(header, rows)
}

// RenderNormalizedCSV renders the normalized interval table.
func RenderNormalizedCSV(intervals []*domain.NormalizedInterval) string {
	header := []string{
		"measure", "site_id", "interval_start", "numerator", "denominator",
		"season", "pandemic_period", "reference_year", "rate_per_1000",
		"baseline_rolling", "rr_rolling", "rd_rolling",
		"baseline_anchor", "rr_anchor", "rd_anchor",
	}
	rows := make([][]string, 0, len(intervals))
	for _, r := range intervals {
		rows = append(rows, []string{
			r.Measure, fmtInt(r.SiteID), fmtDate(r.IntervalStart), fmtInt(r.Numerator), fmtInt(r.Denominator),
			string(r.Season), string(r.PandemicPeriod), fmtInt(r.ReferenceYear), fmtFloat(r.RatePer1000),
			fmtOptional(r.BaselineRolling), fmtOptional(r.RRRolling), fmtOptional(r.RDRolling),
			fmtOptional(r.BaselineAnchor), fmtOptional(r.RRAnchor), fmtOptional(r.RDAnchor),
		})
	}
	return renderCSV(header, rows)
}

// RenderSignificanceCSV renders the significance table.
func RenderSignificanceCSV(results []*domain.SignificanceResult) string {
	header := []string{
		"measure", "season", "pandemic_period", "site_id",
		"target_numerator", "target_denominator", "target_intervals",
		"reference_numerator", "reference_denominator", "reference_intervals",
		"p_value", "p_value_adjusted", "significant", "significant_adj",
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Measure, string(r.Season), string(r.PandemicPeriod), fmtInt(r.SiteID),
			fmtInt(r.TargetNumerator), fmtInt(r.TargetDenominator), fmtInt(r.TargetIntervals),
			fmtInt(r.ReferenceNumerator), fmtInt(r.ReferenceDenominator), fmtInt(r.ReferenceIntervals),
			fmtOptional(r.PValue), fmtOptional(r.PValueAdjusted), fmtBool(r.Significant), fmtBool(r.SignificantAdj),
		})
	}
	return renderCSV(header, rows)
}

// RenderAggregatesCSV renders the national summary table with both weighting variants.
func RenderAggregatesCSV(summaries []*domain.AggregateSummary) string {
	header := []string{
		"measure", "season", "pandemic_period",
		"sites_contributing", "sites_zero_numerator", "prop_sites_zero",
		"pooled_numerator", "pooled_denominator", "pooled_rate",
		"pooled_rr_rolling", "pooled_rd_rolling", "pooled_rr_anchor", "pooled_rd_anchor",
		"site_rr_rolling", "site_rd_rolling", "site_rr_anchor", "site_rd_anchor",
		"tests_defined", "sites_significant", "sites_significant_adj",
		"prop_significant", "prop_significant_adj",
	}
	rows := make([][]string, 0, len(summaries))
	for _, a := range summaries {
		rows = append(rows, []string{
			a.Measure, string(a.Season), string(a.PandemicPeriod),
			fmtInt(a.SitesContributing), fmtInt(a.SitesZeroNumerator), fmtFloat(a.PropSitesZero),
			fmtInt(a.PooledNumerator), fmtInt(a.PooledDenominator), fmtFloat(a.PooledRate),
			fmtOptional(a.PooledRRRolling), fmtOptional(a.PooledRDRolling), fmtOptional(a.PooledRRAnchor), fmtOptional(a.PooledRDAnchor),
			fmtOptional(a.SiteRRRolling), fmtOptional(a.SiteRDRolling), fmtOptional(a.SiteRRAnchor), fmtOptional(a.SiteRDAnchor),
			fmtInt(a.TestsDefined), fmtInt(a.SitesSignificant), fmtInt(a.SitesSignificantAdj),
			fmtOptional(a.PropSignificant), fmtOptional(a.PropSignificantAdj),
		})
	}
	return renderCSV(header, rows)
}

// RenderVarianceCSV renders within- and between-site dispersion.
func RenderVarianceCSV(summaries []*domain.VarianceSummary) string {
	header := []string{
		"measure", "season", "pandemic_period", "sites",
		"within_rate_mean", "within_rate_var", "within_rr_mean", "within_rr_var", "within_rd_mean", "within_rd_var",
		"between_rate_mean", "between_rate_var", "between_rr_mean", "between_rr_var", "between_rd_mean", "between_rd_var",
	}
	rows := make([][]string, 0, len(summaries))
	for _, v := range summaries {
		rows = append(rows, []string{
			v.Measure, string(v.Season), string(v.PandemicPeriod), fmtInt(v.Sites),
			fmtFloat(v.WithinRateMean), fmtOptional(v.WithinRateVar),
			fmtOptional(v.WithinRRMean), fmtOptional(v.WithinRRVar), fmtOptional(v.WithinRDMean), fmtOptional(v.WithinRDVar),
			fmtFloat(v.BetweenRateMean), fmtOptional(v.BetweenRateVar),
			fmtOptional(v.BetweenRRMean), fmtOptional(v.BetweenRRVar), fmtOptional(v.BetweenRDMean), fmtOptional(v.BetweenRDVar),
		})
	}
	return renderCSV(header, rows)
}

// RenderTrendsCSV renders the trend table. Measure-level fits have an empty site_id.
func RenderTrendsCSV(results []*domain.TrendResult) string {
	header := []string{
		"measure", "site_id", "points", "first_week",
		"rate_slope", "rate_r2", "rate_cv",
		"rr_points", "rr_slope", "rr_r2", "rr_cv",
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		site := ""
		if r.SiteID != nil {
			site = fmtInt(*r.SiteID)
		}
		rows = append(rows, []string{
			r.Measure, site, fmtInt(r.Points), r.FirstWeek,
			fmtFloat(r.RateSlope), fmtFloat(r.RateR2), fmtOptional(r.RateCV),
			fmtInt(r.RRPoints), fmtOptional(r.RRSlope), fmtOptional(r.RRR2), fmtOptional(r.RRCV),
		})
	}
	return renderCSV(header, rows)
}

// RenderNationalYearsCSV renders the yearly national rollup.
func RenderNationalYearsCSV(summaries []*domain.NationalYearSummary) string {
	header := []string{"measure", "year", "numerator", "list_size", "sites", "sites_zero", "rate_per_1000", "prop_sites_zero"}
	rows := make([][]string, 0, len(summaries))
	for _, y := range summaries {
		rows = append(rows, []string{
			y.Measure, fmtInt(y.Year), fmtInt(y.Numerator), fmtInt(y.ListSize),
			fmtInt(y.Sites), fmtInt(y.SitesZero), fmtFloat(y.RatePer1000), fmtFloat(y.PropSitesZero),
		})
	}
	return renderCSV(header, rows)
}
