package reporting

import (
	"context"
	"fmt"
	"time"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// Generator produces reports from stored output tables.
type Generator struct {
	aggregateStore storage.AggregateSummaryStore
	trendStore     storage.TrendResultStore
	yearStore      storage.NationalYearStore
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	aggStore storage.AggregateSummaryStore,
	trendStore storage.TrendResultStore,
	yearStore storage.NationalYearStore,
) *Generator {
	return &Generator{
		aggregateStore: aggStore,
		trendStore:     trendStore,
		yearStore:      yearStore,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate reads one result set's stored tables into a report. Run
// information, data quality and variance are filled in by the caller.
func (g *Generator) Generate(ctx context.Context, set domain.ResultSet) (*Report, error) {
	aggs, err := g.aggregateStore.GetAll(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("load aggregate summaries: %w", err)
	}

	trends, err := g.trendStore.GetAll(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("load trend results: %w", err)
	}

	years, err := g.yearStore.GetAll(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("load national years: %w", err)
	}

	measures := make(map[string]struct{})
	for _, a := range aggs {
		measures[a.Measure] = struct{}{}
	}
	for _, y := range years {
		measures[y.Measure] = struct{}{}
	}

	return &Report{
		GeneratedAt:   g.now(),
		MeasureCount:  len(measures),
		Aggregates:    aggs,
		Trends:        trends,
		NationalYears: years,
	}, nil
}
