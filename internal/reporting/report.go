package reporting

import (
	"time"

	"seasonality-lab/internal/domain"
)

// Report is the run summary rendered to markdown.
type Report struct {
	GeneratedAt  time.Time
	MeasureCount int

	Run         RunInfo
	DataQuality DataQualitySection

	Aggregates    []*domain.AggregateSummary
	Variance      []*domain.VarianceSummary
	Trends        []*domain.TrendResult
	NationalYears []*domain.NationalYearSummary
}

// RunInfo identifies the run and its inputs for reproducibility.
type RunInfo struct {
	RunID             string
	Source            string
	DataVersion       string
	ConfigHash        string
	ReferenceSeason   domain.Season
	SignificanceLevel float64
}

// DataQualitySection reports input volumes and every non-fatal exclusion.
type DataQualitySection struct {
	RowsRead   int
	RowsLoaded int
	RowsMerged int
	Exclusions []domain.ExclusionEntry
	RowErrors  []string // first rejected rows, for audit
}
