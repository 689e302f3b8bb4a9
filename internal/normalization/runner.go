package normalization

import (
	"io"

	"github.com/sirupsen/logrus"

	"seasonality-lab/internal/domain"
)

// Stage names used in the exclusion ledger.
const (
	StageNormalize      = "normalize"
	StageFilterSite     = "filter_site"
	StageFilterNational = "filter_national"
)

// Result holds every table produced by the normalization stage.
type Result struct {
	Baselines        *BaselineSet
	Normalized       []*domain.NormalizedInterval // all classified rows
	SiteFiltered     []*domain.NormalizedInterval // site-scope zero-baseline filter applied
	NationalFiltered []*domain.NormalizedInterval // national-scope zero-baseline filter applied

	// MissingBaseline counts rows without a rolling baseline.
	MissingBaseline int
	SiteRemoved     int
	NationalRemoved int
}

// Runner composes baseline building, normalization and filtering.
type Runner struct {
	referenceSeason domain.Season
	logger          logrus.FieldLogger
}

// NewRunner creates a new normalization runner.
func NewRunner(referenceSeason domain.Season, logger logrus.FieldLogger) *Runner {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Runner{referenceSeason: referenceSeason, logger: logger}
}

// Run builds baselines from the complete classified table and derives the
// normalized and filtered tables. Exclusions are added to ledger when set.
func (r *Runner) Run(rows []*domain.ClassifiedInterval, ledger *domain.ExclusionLedger) *Result {
	set := BuildBaselines(rows, r.referenceSeason)
	normalized := Normalize(rows, set)

	res := &Result{Baselines: set, Normalized: normalized}
	for _, n := range normalized {
		if n.BaselineRolling == nil {
			res.MissingBaseline++
			r.logger.WithFields(logrus.Fields{
				"measure":        n.Measure,
				"site_id":        n.SiteID,
				"reference_year": n.ReferenceYear,
			}).Debug("no rolling baseline")
		}
	}

	res.SiteFiltered, res.SiteRemoved = FilterZeroBaselines(normalized, set, ScopeSite)
	res.NationalFiltered, res.NationalRemoved = FilterZeroBaselines(normalized, set, ScopeNational)

	if ledger != nil {
		ledger.Add(StageNormalize, domain.ExclusionMissingBaseline, res.MissingBaseline)
		ledger.Add(StageFilterSite, domain.ExclusionMissingBaseline, res.SiteRemoved)
		ledger.Add(StageFilterNational, domain.ExclusionMissingBaseline, res.NationalRemoved)
	}

	fields := logrus.Fields{
		"baselines":        set.Len(),
		"rows":             len(normalized),
		"missing_baseline": res.MissingBaseline,
		"site_removed":     res.SiteRemoved,
		"national_removed": res.NationalRemoved,
	}
	if res.SiteRemoved > 0 || res.NationalRemoved > 0 {
		r.logger.WithFields(fields).Warn("zero-baseline strata removed")
	} else {
		r.logger.WithFields(fields).Info("intervals normalized")
	}
	return res
}
