// Package calendar labels interval rows with season, pandemic period and reference year.
package calendar

import (
	"seasonality-lab/internal/config"
	"seasonality-lab/internal/domain"
)

// Result is the classifier output.
type Result struct {
	Intervals []*domain.ClassifiedInterval
	// Blackout counts rows dropped for starting inside the holiday blackout window.
	Blackout int
}

// Classifier assigns calendar labels. It holds no state beyond the configuration.
type Classifier struct {
	cfg *config.Config
}

// NewClassifier creates a classifier for the given configuration.
func NewClassifier(cfg *config.Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// ClassifyOne labels a single row. ok is false when the row falls in the
// holiday blackout window and must be excluded.
func (c *Classifier) ClassifyOne(row *domain.IntervalCount) (*domain.ClassifiedInterval, bool) {
	start := row.IntervalStart
	if c.cfg.InBlackout(start) {
		return nil, false
	}
	return &domain.ClassifiedInterval{
		IntervalCount:  *row,
		Season:         c.cfg.SeasonOf(start.Month()),
		PandemicPeriod: c.cfg.PandemicPeriod(start),
		ReferenceYear:  c.cfg.ReferenceYear(start),
	}, true
}

// Classify labels every row, preserving input order.
func (c *Classifier) Classify(rows []*domain.IntervalCount) *Result {
	res := &Result{Intervals: make([]*domain.ClassifiedInterval, 0, len(rows))}
	for _, row := range rows {
		ci, ok := c.ClassifyOne(row)
		if !ok {
			res.Blackout++
			continue
		}
		res.Intervals = append(res.Intervals, ci)
	}
	return res
}
