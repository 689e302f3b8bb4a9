// Package trend fits linear long-term trends of rate and RR per measure.
package trend

import (
	"errors"
	"io"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
	gonumstat "gonum.org/v1/gonum/stat"

	"seasonality-lab/internal/domain"
)

// StageName labels trend exclusions in the ledger and metrics.
const StageName = "trend"

// ErrInsufficientData is returned when a series has fewer than two distinct time points.
var ErrInsufficientData = errors.New("insufficient trend data")

const week = 7 * 24 * time.Hour

// Fit is an ordinary least-squares fit of y against x.
type Fit struct {
	Slope     float64
	Intercept float64
	R2        float64
	CV        *float64 // population stddev / mean of y, nil when the mean is zero
}

// FitSeries fits y = intercept + slope*x. Returns ErrInsufficientData when x
// has fewer than two distinct values.
func FitSeries(x, y []float64) (*Fit, error) {
	if len(x) < 2 || len(x) != len(y) || !distinct(x) {
		return nil, ErrInsufficientData
	}
	intercept, slope := gonumstat.LinearRegression(x, y, nil, false)
	r2 := gonumstat.RSquared(x, y, nil, intercept, slope)
	if math.IsNaN(r2) {
		// constant series
		r2 = 0
	}
	return &Fit{Slope: slope, Intercept: intercept, R2: r2, CV: coefficientOfVariation(y)}, nil
}

func distinct(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return true
		}
	}
	return false
}

// coefficientOfVariation returns the population stddev divided by the mean.
func coefficientOfVariation(y []float64) *float64 {
	mean, err := stats.Mean(y)
	if err != nil || mean == 0 {
		return nil
	}
	sd, err := stats.StandardDeviationPopulation(y)
	if err != nil {
		return nil
	}
	cv := sd / mean
	return &cv
}

// Fitter fits trends per measure and optionally per (measure, site).
type Fitter struct {
	perSite bool
	logger  logrus.FieldLogger
}

// NewFitter creates a new Fitter.
func NewFitter(perSite bool, logger logrus.FieldLogger) *Fitter {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Fitter{perSite: perSite, logger: logger}
}

type seriesKey struct {
	measure string
	siteID  int64
	bySite  bool
}

// Fit returns one TrendResult per measure (and per site when enabled),
// ordered by measure with the measure-level fit first. Elapsed time is
// counted in weeks from each key's own first interval. Keys with fewer than
// two points are skipped and counted in skipped.
func (f *Fitter) Fit(rows []*domain.NormalizedInterval) (results []*domain.TrendResult, skipped int) {
	series := make(map[seriesKey][]*domain.NormalizedInterval)
	for _, r := range rows {
		series[seriesKey{measure: r.Measure}] = append(series[seriesKey{measure: r.Measure}], r)
		if f.perSite {
			k := seriesKey{measure: r.Measure, siteID: r.SiteID, bySite: true}
			series[k] = append(series[k], r)
		}
	}

	keys := make([]seriesKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.measure != b.measure {
			return a.measure < b.measure
		}
		if a.bySite != b.bySite {
			return !a.bySite
		}
		return a.siteID < b.siteID
	})

	for _, k := range keys {
		res, err := fitKey(k, series[k])
		if err != nil {
			skipped++
			f.logger.WithFields(logrus.Fields{"measure": k.measure, "site_id": k.siteID, "points": len(series[k])}).
				WithError(err).Debug("trend skipped")
			continue
		}
		results = append(results, res)
	}

	fields := logrus.Fields{"stage": StageName, "fits": len(results), "skipped": skipped}
	if skipped > 0 {
		f.logger.WithFields(fields).Warn("trend keys skipped")
	} else {
		f.logger.WithFields(fields).Info("trends fitted")
	}
	return results, skipped
}

func fitKey(k seriesKey, rows []*domain.NormalizedInterval) (*domain.TrendResult, error) {
	first := rows[0].IntervalStart
	for _, r := range rows[1:] {
		if r.IntervalStart.Before(first) {
			first = r.IntervalStart
		}
	}

	x := make([]float64, len(rows))
	y := make([]float64, len(rows))
	var rrX, rrY []float64
	for i, r := range rows {
		x[i] = float64(r.IntervalStart.Sub(first)) / float64(week)
		y[i] = r.RatePer1000
		if r.RRRolling != nil {
			rrX = append(rrX, x[i])
			rrY = append(rrY, *r.RRRolling)
		}
	}

	rate, err := FitSeries(x, y)
	if err != nil {
		return nil, err
	}

	res := &domain.TrendResult{
		Measure:   k.measure,
		Points:    len(rows),
		FirstWeek: first.Format("2006-01-02"),
		RateSlope: rate.Slope,
		RateR2:    rate.R2,
		RateCV:    rate.CV,
		RRPoints:  len(rrY),
	}
	if k.bySite {
		site := k.siteID
		res.SiteID = &site
	}
	if rr, err := FitSeries(rrX, rrY); err == nil {
		res.RRSlope = domain.Float(rr.Slope)
		res.RRR2 = domain.Float(rr.R2)
		res.RRCV = rr.CV
	}
	return res, nil
}
