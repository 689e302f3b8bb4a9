package reporting

import (
	"fmt"
	"strings"
	"time"

	"seasonality-lab/internal/domain"
)

// undefinedCell is shown for values that could not be computed.
const undefinedCell = "n/a"

func mdOptional(v *float64) string {
	if v == nil {
		return undefinedCell
	}
	return fmt.Sprintf("%.4f", *v)
}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Seasonality Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Measures: %d | Summaries: %d | Trend fits: %d\n\n",
		r.MeasureCount, len(r.Aggregates), len(r.Trends)))

	// Run
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("| Source | %s |\n", r.Run.Source))
	sb.WriteString(fmt.Sprintf("| Data Version | %s |\n", r.Run.DataVersion))
	sb.WriteString(fmt.Sprintf("| Config Hash | %s |\n", r.Run.ConfigHash))
	sb.WriteString(fmt.Sprintf("| Reference Season | %s |\n", r.Run.ReferenceSeason))
	sb.WriteString(fmt.Sprintf("| Significance Level | %.2f |\n", r.Run.SignificanceLevel))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString(fmt.Sprintf("Rows read: %d | loaded: %d | merged duplicates: %d\n\n",
		r.DataQuality.RowsRead, r.DataQuality.RowsLoaded, r.DataQuality.RowsMerged))
	if len(r.DataQuality.Exclusions) > 0 {
		sb.WriteString("| Stage | Reason | Count |\n")
		sb.WriteString("|-------|--------|-------|\n")
		for _, e := range r.DataQuality.Exclusions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", e.Stage, e.Reason, e.Count))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No rows or strata excluded.\n\n")
	}
	if len(r.DataQuality.RowErrors) > 0 {
		sb.WriteString("### Rejected Rows\n\n")
		for _, e := range r.DataQuality.RowErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	// Aggregates
	sb.WriteString("## Seasonal Summary\n\n")
	if len(r.Aggregates) > 0 {
		sb.WriteString("| Measure | Season | Period | Sites | Zero% | Pooled Rate | Pooled RR | Site RR | Pooled RR (anchor) | Site RR (anchor) | Sig | Sig (BH) |\n")
		sb.WriteString("|---------|--------|--------|-------|-------|-------------|-----------|---------|--------------------|------------------|-----|----------|\n")
		for _, a := range r.Aggregates {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.1f | %.4f | %s | %s | %s | %s | %s | %s |\n",
				a.Measure, a.Season, a.PandemicPeriod, a.SitesContributing, 100*a.PropSitesZero, a.PooledRate,
				mdOptional(a.PooledRRRolling), mdOptional(a.SiteRRRolling),
				mdOptional(a.PooledRRAnchor), mdOptional(a.SiteRRAnchor),
				significanceCell(a.SitesSignificant, a.TestsDefined, a.PropSignificant),
				significanceCell(a.SitesSignificantAdj, a.TestsDefined, a.PropSignificantAdj)))
		}
	} else {
		sb.WriteString("No seasonal summaries available.\n")
	}
	sb.WriteString("\n")

	// Variance
	if len(r.Variance) > 0 {
		sb.WriteString("## Site Variation\n\n")
		sb.WriteString("| Measure | Season | Period | Sites | Within Rate Var | Between Rate Var | Within RR Var | Between RR Var |\n")
		sb.WriteString("|---------|--------|--------|-------|-----------------|------------------|---------------|----------------|\n")
		for _, v := range r.Variance {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s | %s | %s |\n",
				v.Measure, v.Season, v.PandemicPeriod, v.Sites,
				mdOptional(v.WithinRateVar), mdOptional(v.BetweenRateVar), mdOptional(v.WithinRRVar), mdOptional(v.BetweenRRVar)))
		}
		sb.WriteString("\n")
	}

	// Trends
	sb.WriteString("## Trends\n\n")
	if len(r.Trends) > 0 {
		sb.WriteString("| Measure | Site | Points | First Week | Rate Slope/wk | Rate R² | Rate CV | RR Slope/wk | RR R² | RR CV |\n")
		sb.WriteString("|---------|------|--------|------------|---------------|---------|---------|-------------|-------|-------|\n")
		for _, t := range r.Trends {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %.6f | %.4f | %s | %s | %s | %s |\n",
				t.Measure, siteCell(t.SiteID), t.Points, t.FirstWeek,
				t.RateSlope, t.RateR2, mdOptional(t.RateCV),
				mdOptional(t.RRSlope), mdOptional(t.RRR2), mdOptional(t.RRCV)))
		}
	} else {
		sb.WriteString("No trend fits available.\n")
	}
	sb.WriteString("\n")

	// Yearly
	sb.WriteString("## Yearly Totals\n\n")
	if len(r.NationalYears) > 0 {
		sb.WriteString("| Measure | Year | Numerator | List Size | Rate/1000 | Sites | Zero Sites |\n")
		sb.WriteString("|---------|------|-----------|-----------|-----------|-------|------------|\n")
		for _, y := range r.NationalYears {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %d | %d |\n",
				y.Measure, y.Year, y.Numerator, y.ListSize, y.RatePer1000, y.Sites, y.SitesZero))
		}
	} else {
		sb.WriteString("No yearly totals available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func significanceCell(significant, defined int, prop *float64) string {
	if prop == nil {
		return undefinedCell
	}
	return fmt.Sprintf("%d/%d", significant, defined)
}

func siteCell(siteID *int64) string {
	if siteID == nil {
		return "all"
	}
	return fmt.Sprintf("%d", *siteID)
}

// ExclusionLines formats ledger entries for plain-text output.
func ExclusionLines(entries []domain.ExclusionEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s/%s: %d", e.Stage, e.Reason, e.Count))
	}
	return lines
}
