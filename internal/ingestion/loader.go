package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/observability"
	"seasonality-lab/internal/storage"
)

// StageName labels loader exclusions in the ledger and metrics.
const StageName = "load"

// maxRowErrors caps the row errors kept on a LoadResult for reporting.
const maxRowErrors = 100

// LoadResult describes one load.
type LoadResult struct {
	Rows        []*domain.IntervalCount // validated, merged, sorted by (measure, site, start)
	Read        int                     // raw rows read from the source
	Dropped     int                     // missing or non-positive denominator
	Rejected    int                     // schema failures
	Merged      int                     // duplicate keys folded into an earlier row
	DataVersion string                  // sha256 over the loaded rows
	RowErrors   []*RowError             // first maxRowErrors exclusions, in source order
}

// Loader validates raw interval rows and writes them to the interval store.
// It enforces deterministic ordering and merges duplicate keys.
type Loader struct {
	store   storage.IntervalCountStore
	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// LoaderOptions contains configuration for creating a Loader.
type LoaderOptions struct {
	Store   storage.IntervalCountStore // optional; rows are only returned when nil
	Logger  logrus.FieldLogger
	Metrics *observability.Metrics
}

// NewLoader creates a new Loader.
func NewLoader(opts LoaderOptions) *Loader {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Loader{
		store:   opts.Store,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Load fetches rows from src, validates them and stores the result.
// Invalid rows are excluded and counted; only source or storage failures are returned.
func (l *Loader) Load(ctx context.Context, src IntervalSource) (*LoadResult, error) {
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", src.Name(), err)
	}
	l.logger.WithFields(logrus.Fields{"source": src.Name(), "rows": len(raw)}).Info("fetched input rows")

	res := l.validate(raw)

	if l.store != nil && len(res.Rows) > 0 {
		err := l.store.InsertBulk(ctx, res.Rows)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			// Outputs are keyed by data version; the input archive keeps its first rows.
			l.logger.WithFields(logrus.Fields{
				"rows":         len(res.Rows),
				"data_version": res.DataVersion,
			}).Warn("interval counts already stored, skipping write")
		case err != nil:
			return nil, fmt.Errorf("store interval counts: %w", err)
		}
	}

	l.metrics.RecordRowsRead(res.Read)
	l.metrics.RecordRowsLoaded(len(res.Rows))
	l.metrics.RecordExclusions(StageName, domain.ExclusionNonPositiveDenom, res.Dropped)
	l.metrics.RecordExclusions(StageName, domain.ExclusionInvalidRow, res.Rejected)

	fields := logrus.Fields{
		"loaded":   len(res.Rows),
		"dropped":  res.Dropped,
		"rejected": res.Rejected,
		"merged":   res.Merged,
	}
	if res.Dropped > 0 || res.Rejected > 0 {
		l.logger.WithFields(fields).Warn("input rows excluded")
	} else {
		l.logger.WithFields(fields).Info("input rows loaded")
	}
	return res, nil
}

// LoadRows validates already-fetched raw rows without touching a source.
func (l *Loader) LoadRows(raw []RawRow) *LoadResult {
	return l.validate(raw)
}

func (l *Loader) validate(raw []RawRow) *LoadResult {
	res := &LoadResult{Read: len(raw)}

	parsed := make([]*domain.IntervalCount, 0, len(raw))
	for _, r := range raw {
		row, err := ParseRow(r)
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) && len(res.RowErrors) < maxRowErrors {
				res.RowErrors = append(res.RowErrors, rowErr)
			}
			if errors.Is(err, ErrNonPositiveDenominator) {
				res.Dropped++
			} else {
				res.Rejected++
			}
			l.logger.WithError(err).Debug("row excluded")
			continue
		}
		parsed = append(parsed, row)
	}

	SortIntervals(parsed)
	res.Rows, res.Merged = MergeDuplicates(parsed)
	res.DataVersion = computeDataVersion(res.Rows)
	return res
}

// computeDataVersion hashes the loaded rows in their canonical order.
func computeDataVersion(rows []*domain.IntervalCount) string {
	h := sha256.New()
	for _, r := range rows {
		fmt.Fprintf(h, "%s|%d|%s|%d|%d\n", r.Measure, r.SiteID, r.IntervalStart.Format("2006-01-02"), r.Numerator, r.Denominator)
	}
	return hex.EncodeToString(h.Sum(nil))
}
