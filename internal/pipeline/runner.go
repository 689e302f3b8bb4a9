// Package pipeline runs the seasonality engine end to end.
// Flow: load → classify → baselines → normalize → filter → significance →
// aggregate → trend → persist → report. Each stage reads the previous
// stage's complete output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"seasonality-lab/internal/calendar"
	"seasonality-lab/internal/config"
	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/ingestion"
	"seasonality-lab/internal/metrics"
	"seasonality-lab/internal/normalization"
	"seasonality-lab/internal/observability"
	"seasonality-lab/internal/reporting"
	"seasonality-lab/internal/significance"
	"seasonality-lab/internal/storage"
	"seasonality-lab/internal/storage/memory"
	"seasonality-lab/internal/trend"
)

// Stage names that are not owned by a stage package.
const (
	StageClassify  = "classify"
	StageAggregate = "aggregate"
	StagePersist   = "persist"
	StageReport    = "report"
)

// ErrNoSource is returned when Options.Source is nil.
var ErrNoSource = errors.New("no interval source configured")

// Options for creating Runner. Nil stores default to in-memory stores.
type Options struct {
	Config *config.Config
	Source ingestion.IntervalSource

	// Stores
	IntervalStore     storage.IntervalCountStore
	BaselineStore     storage.BaselineStore
	NormalizedStore   storage.NormalizedIntervalStore
	SignificanceStore storage.SignificanceResultStore
	AggregateStore    storage.AggregateSummaryStore
	TrendStore        storage.TrendResultStore
	NationalYearStore storage.NationalYearStore
	RunStore          storage.RunStore

	// StoreBackend labels database metrics, e.g. "memory" or "clickhouse".
	StoreBackend string

	// OutputDir receives CSV tables and REPORT.md when set.
	OutputDir string

	Logger  *logrus.Logger
	Metrics *observability.Metrics
	Clock   func() time.Time
}

// Runner coordinates one batch run.
type Runner struct {
	cfg    *config.Config
	source ingestion.IntervalSource

	intervalStore     storage.IntervalCountStore
	baselineStore     storage.BaselineStore
	normalizedStore   storage.NormalizedIntervalStore
	significanceStore storage.SignificanceResultStore
	aggregateStore    storage.AggregateSummaryStore
	trendStore        storage.TrendResultStore
	nationalYearStore storage.NationalYearStore
	runStore          storage.RunStore

	backend   string
	outputDir string
	logger    *logrus.Logger
	metrics   *observability.Metrics
	clock     func() time.Time
}

// New creates a new Runner.
func New(opts Options) *Runner {
	r := &Runner{
		cfg:               opts.Config,
		source:            opts.Source,
		intervalStore:     opts.IntervalStore,
		baselineStore:     opts.BaselineStore,
		normalizedStore:   opts.NormalizedStore,
		significanceStore: opts.SignificanceStore,
		aggregateStore:    opts.AggregateStore,
		trendStore:        opts.TrendStore,
		nationalYearStore: opts.NationalYearStore,
		runStore:          opts.RunStore,
		backend:           opts.StoreBackend,
		outputDir:         opts.OutputDir,
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		clock:             opts.Clock,
	}
	if r.intervalStore == nil {
		r.intervalStore = memory.NewIntervalCountStore()
	}
	if r.baselineStore == nil {
		r.baselineStore = memory.NewBaselineStore()
	}
	if r.normalizedStore == nil {
		r.normalizedStore = memory.NewNormalizedIntervalStore()
	}
	if r.significanceStore == nil {
		r.significanceStore = memory.NewSignificanceResultStore()
	}
	if r.aggregateStore == nil {
		r.aggregateStore = memory.NewAggregateSummaryStore()
	}
	if r.trendStore == nil {
		r.trendStore = memory.NewTrendResultStore()
	}
	if r.nationalYearStore == nil {
		r.nationalYearStore = memory.NewNationalYearStore()
	}
	if r.runStore == nil {
		r.runStore = memory.NewRunStore()
	}
	if r.backend == "" {
		r.backend = "memory"
	}
	if r.logger == nil {
		r.logger = logrus.New()
		r.logger.SetOutput(io.Discard)
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// RunResult contains every table produced by a run.
type RunResult struct {
	Run    *domain.RunRecord
	Ledger *domain.ExclusionLedger
	Load   *ingestion.LoadResult

	// Set identifies every persisted row of this run.
	Set domain.ResultSet

	Baselines     []*domain.BaselineRecord
	Normalized    []*domain.NormalizedInterval
	Significance  []*domain.SignificanceResult
	Aggregates    []*domain.AggregateSummary
	Variance      []*domain.VarianceSummary
	Trends        []*domain.TrendResult
	SiteYears     []*domain.SiteYearSummary
	NationalYears []*domain.NationalYearSummary

	// Files lists the output files written, in write order.
	Files []string
}

// Run executes the full pipeline. An invalid configuration aborts before
// any stage runs and before a run is recorded. Row and stratum exclusions
// never fail the run; they are counted in the result ledger.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if r.cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", config.ErrInvalidConfig)
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if r.source == nil {
		return nil, ErrNoSource
	}

	started := r.clock()
	run := &domain.RunRecord{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		Status:     domain.RunStatusRunning,
		ConfigHash: r.cfg.Hash(),
	}
	if err := r.runStore.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	log := r.logger.WithField("run_id", run.RunID)
	log.WithField("source", r.source.Name()).Info("pipeline started")

	res := &RunResult{Run: run, Ledger: domain.NewExclusionLedger()}
	runErr := r.execute(ctx, log, res)

	finished := r.clock()
	run.FinishedAt = &finished
	run.Status = domain.RunStatusSucceeded
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	}
	r.metrics.RecordPipelineRun(run.Status, finished.Sub(started))

	// The run record is finished even when the context was cancelled.
	if err := r.runStore.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Error("failed to record run finish")
		if runErr == nil {
			runErr = fmt.Errorf("record run finish: %w", err)
		}
	}

	if runErr != nil {
		log.WithError(runErr).Error("pipeline failed")
		return res, runErr
	}
	log.WithFields(logrus.Fields{
		"intervals":  run.Intervals,
		"tests":      run.Tests,
		"summaries":  run.Summaries,
		"trends":     run.Trends,
		"exclusions": res.Ledger.String(),
	}).Info("pipeline completed")
	return res, nil
}

func (r *Runner) execute(ctx context.Context, log logrus.FieldLogger, res *RunResult) error {
	run := res.Run

	// Stage 1: load
	start := time.Now()
	loader := ingestion.NewLoader(ingestion.LoaderOptions{
		Store:   r.intervalStore,
		Logger:  log.WithField("stage", ingestion.StageName),
		Metrics: r.metrics,
	})
	loaded, err := loader.Load(ctx, r.source)
	if err != nil {
		return fmt.Errorf("stage %s: %w", ingestion.StageName, err)
	}
	res.Load = loaded
	res.Ledger.Add(ingestion.StageName, domain.ExclusionNonPositiveDenom, loaded.Dropped)
	res.Ledger.Add(ingestion.StageName, domain.ExclusionInvalidRow, loaded.Rejected)
	run.DataVersion = loaded.DataVersion
	res.Set = domain.ResultSet{DataVersion: loaded.DataVersion, ConfigHash: run.ConfigHash}
	run.RowsLoaded = len(loaded.Rows)
	run.RowsDropped = loaded.Dropped
	run.RowsRejected = loaded.Rejected
	r.metrics.ObserveStage(ingestion.StageName, start, len(loaded.Rows))
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stage 2: classify
	start = time.Now()
	classified := calendar.NewClassifier(r.cfg).Classify(loaded.Rows)
	res.Ledger.Add(StageClassify, domain.ExclusionHolidayBlackout, classified.Blackout)
	r.metrics.RecordExclusions(StageClassify, domain.ExclusionHolidayBlackout, classified.Blackout)
	r.metrics.ObserveStage(StageClassify, start, len(classified.Intervals))
	log.WithFields(logrus.Fields{
		"stage":    StageClassify,
		"rows":     len(classified.Intervals),
		"blackout": classified.Blackout,
	}).Info("intervals classified")

	// Stages 3-5: baselines, ratios, zero-baseline filters
	start = time.Now()
	norm := normalization.NewRunner(r.cfg.ReferenceSeasonLabel(), log.WithField("stage", normalization.StageNormalize)).
		Run(classified.Intervals, res.Ledger)
	res.Baselines = norm.Baselines.Records()
	res.Normalized = norm.Normalized
	run.Intervals = len(norm.Normalized)
	run.Baselines = len(res.Baselines)
	r.metrics.RecordExclusions(normalization.StageNormalize, domain.ExclusionMissingBaseline, norm.MissingBaseline)
	r.metrics.RecordExclusions(normalization.StageFilterSite, domain.ExclusionMissingBaseline, norm.SiteRemoved)
	r.metrics.RecordExclusions(normalization.StageFilterNational, domain.ExclusionMissingBaseline, norm.NationalRemoved)
	r.metrics.ObserveStage(normalization.StageNormalize, start, len(norm.Normalized))

	// Stage 6: significance
	start = time.Now()
	tester := significance.NewTester(significance.TesterOptions{
		ReferenceSeason: r.cfg.ReferenceSeasonLabel(),
		Alpha:           r.cfg.SignificanceLevel,
		Workers:         r.cfg.Workers,
		Logger:          log.WithField("stage", significance.StageName),
		Metrics:         r.metrics,
	})
	tests, err := tester.Run(ctx, norm.SiteFiltered)
	if err != nil {
		return fmt.Errorf("stage %s: %w", significance.StageName, err)
	}
	res.Significance = tests
	run.Tests = len(tests)
	undefined := 0
	for _, t := range tests {
		if !t.Defined() {
			undefined++
		}
	}
	res.Ledger.Add(significance.StageName, domain.ExclusionDegenerateTest, undefined)
	r.metrics.ObserveStage(significance.StageName, start, len(tests))

	// Stage 7: aggregate
	start = time.Now()
	res.Aggregates = metrics.NewAggregator(nil).Summarize(&metrics.Input{
		Classified:       classified.Intervals,
		SiteFiltered:     norm.SiteFiltered,
		NationalFiltered: norm.NationalFiltered,
		Baselines:        norm.Baselines,
		Significance:     tests,
	})
	res.Variance = metrics.VarianceSummaries(norm.SiteFiltered)
	res.SiteYears = metrics.RollupSiteYears(loaded.Rows)
	res.NationalYears = metrics.RollupNationalYears(res.SiteYears)
	run.Summaries = len(res.Aggregates)
	r.metrics.ObserveStage(StageAggregate, start, len(res.Aggregates))
	log.WithFields(logrus.Fields{
		"stage":          StageAggregate,
		"summaries":      len(res.Aggregates),
		"variance":       len(res.Variance),
		"national_years": len(res.NationalYears),
	}).Info("aggregates computed")

	// Stage 8: trend
	start = time.Now()
	trends, skipped := trend.NewFitter(r.cfg.Trend.PerSite, log.WithField("stage", trend.StageName)).Fit(norm.SiteFiltered)
	res.Trends = trends
	run.Trends = len(trends)
	res.Ledger.Add(trend.StageName, domain.ExclusionInsufficientTrend, skipped)
	r.metrics.RecordExclusions(trend.StageName, domain.ExclusionInsufficientTrend, skipped)
	r.metrics.ObserveStage(trend.StageName, start, len(trends))

	if err := ctx.Err(); err != nil {
		return err
	}

	// Stage 9: persist
	start = time.Now()
	stampResultSet(res)
	if err := r.persistAll(ctx, log.WithField("stage", StagePersist), res); err != nil {
		return fmt.Errorf("stage %s: %w", StagePersist, err)
	}
	r.metrics.ObserveStage(StagePersist, start, 0)

	// Stage 10: report
	if r.outputDir == "" {
		return nil
	}
	start = time.Now()
	files, err := r.writeOutputs(ctx, res)
	if err != nil {
		return fmt.Errorf("stage %s: %w", StageReport, err)
	}
	res.Files = files
	r.metrics.ObserveStage(StageReport, start, len(files))
	log.WithFields(logrus.Fields{"stage": StageReport, "dir": r.outputDir, "files": len(files)}).Info("outputs written")
	return nil
}

// stampResultSet tags every output row with the run's result set.
func stampResultSet(res *RunResult) {
	for _, b := range res.Baselines {
		b.ResultSet = res.Set
	}
	for _, n := range res.Normalized {
		n.ResultSet = res.Set
	}
	for _, s := range res.Significance {
		s.ResultSet = res.Set
	}
	for _, a := range res.Aggregates {
		a.ResultSet = res.Set
	}
	for _, t := range res.Trends {
		t.ResultSet = res.Set
	}
	for _, y := range res.NationalYears {
		y.ResultSet = res.Set
	}
}

// persistAll writes every table. Tables are append-only and keyed by result
// set: a duplicate key means the same input under the same configuration was
// already persisted by an earlier run.
func (r *Runner) persistAll(ctx context.Context, log logrus.FieldLogger, res *RunResult) error {
	steps := []struct {
		table string
		rows  int
		write func() error
	}{
		{"baselines", len(res.Baselines), func() error { return r.baselineStore.InsertBulk(ctx, res.Baselines) }},
		{"normalized_intervals", len(res.Normalized), func() error { return r.normalizedStore.InsertBulk(ctx, res.Normalized) }},
		{"significance_results", len(res.Significance), func() error { return r.significanceStore.InsertBulk(ctx, res.Significance) }},
		{"aggregate_summaries", len(res.Aggregates), func() error { return r.aggregateStore.InsertBulk(ctx, res.Aggregates) }},
		{"trend_results", len(res.Trends), func() error { return r.trendStore.InsertBulk(ctx, res.Trends) }},
		{"national_year_summaries", len(res.NationalYears), func() error {
			return metrics.StoreNationalYears(ctx, r.nationalYearStore, res.NationalYears)
		}},
	}

	for _, s := range steps {
		if s.rows == 0 {
			continue
		}
		start := time.Now()
		err := s.write()
		if errors.Is(err, storage.ErrDuplicateKey) {
			r.metrics.RecordDBQuery(r.backend, "insert_"+s.table, time.Since(start).Seconds(), nil)
			log.WithFields(logrus.Fields{"table": s.table, "rows": s.rows}).Warn("rows already persisted, skipping")
			continue
		}
		r.metrics.RecordDBQuery(r.backend, "insert_"+s.table, time.Since(start).Seconds(), err)
		if err != nil {
			return fmt.Errorf("persist %s: %w", s.table, err)
		}
		log.WithFields(logrus.Fields{"table": s.table, "rows": s.rows}).Debug("rows persisted")
	}
	return nil
}

// writeOutputs writes the CSV tables and the markdown report.
func (r *Runner) writeOutputs(ctx context.Context, res *RunResult) ([]string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, err
	}

	report, err := reporting.NewGenerator(r.aggregateStore, r.trendStore, r.nationalYearStore).
		WithClock(r.clock).
		Generate(ctx, res.Set)
	if err != nil {
		return nil, err
	}
	report.Run = reporting.RunInfo{
		RunID:             res.Run.RunID,
		Source:            r.source.Name(),
		DataVersion:       res.Run.DataVersion,
		ConfigHash:        res.Run.ConfigHash,
		ReferenceSeason:   r.cfg.ReferenceSeasonLabel(),
		SignificanceLevel: r.cfg.SignificanceLevel,
	}
	report.DataQuality = reporting.DataQualitySection{
		RowsRead:   res.Load.Read,
		RowsLoaded: len(res.Load.Rows),
		RowsMerged: res.Load.Merged,
		Exclusions: res.Ledger.Entries(),
	}
	for _, e := range res.Load.RowErrors {
		report.DataQuality.RowErrors = append(report.DataQuality.RowErrors, e.Error())
	}
	report.Variance = res.Variance

	outputs := []struct {
		name    string
		content string
	}{
		{reporting.FileBaselines, reporting.RenderBaselinesCSV(res.Baselines)},
		{reporting.FileNormalized, reporting.RenderNormalizedCSV(res.Normalized)},
		{reporting.FileSignificance, reporting.RenderSignificanceCSV(res.Significance)},
		{reporting.FileAggregates, reporting.RenderAggregatesCSV(res.Aggregates)},
		{reporting.FileVariance, reporting.RenderVarianceCSV(res.Variance)},
		{reporting.FileTrends, reporting.RenderTrendsCSV(res.Trends)},
		{reporting.FileNationalYears, reporting.RenderNationalYearsCSV(res.NationalYears)},
		{reporting.FileReport, reporting.RenderMarkdown(report)},
	}

	files := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := filepath.Join(r.outputDir, o.name)
		if err := os.WriteFile(path, []byte(o.content), 0644); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}
