// Package simulate generates synthetic weekly interval counts with seasonal
// structure, rounded the way the upstream disclosure control rounds them.
package simulate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"seasonality-lab/internal/domain"
)

// ErrInvalidOptions is returned for options that cannot produce data.
var ErrInvalidOptions = errors.New("invalid simulation options")

// MeasureProfile describes the expected weekly rate of one measure.
type MeasureProfile struct {
	Name string
	// WeeklyRate is the expected events per 1000 patients per week.
	WeeklyRate float64
	// Seasonal multiplies WeeklyRate by calendar month. Missing months use 1.
	Seasonal map[time.Month]float64
	// ZeroSiteFraction is the share of sites that never record the measure.
	ZeroSiteFraction float64
}

// Options controls generation.
type Options struct {
	Measures       []MeasureProfile
	Sites          int
	Start          time.Time // first interval; must be a Monday
	Years          int
	MinListSize    int
	MaxListSize    int
	AnnualGrowth   float64 // list size growth per year, e.g. 0.01
	DisclosureBase int
	Seed           uint64
}

// DefaultOptions returns a small multi-year dataset with winter peaks.
func DefaultOptions() Options {
	return Options{
		Measures: []MeasureProfile{
			{
				Name:       "flu",
				WeeklyRate: 0.4,
				Seasonal: map[time.Month]float64{
					time.January: 2.5, time.February: 2.0, time.June: 0.6, time.July: 0.6,
					time.November: 2.0, time.December: 3.0,
				},
			},
			{
				Name:       "ari",
				WeeklyRate: 2.0,
				Seasonal: map[time.Month]float64{
					time.January: 1.6, time.September: 1.4, time.October: 1.5, time.November: 1.7, time.December: 1.8,
				},
			},
			{
				Name:       "strep_a",
				WeeklyRate: 0.05,
				Seasonal: map[time.Month]float64{
					time.December: 4.0, time.January: 2.0,
				},
				ZeroSiteFraction: 0.2,
			},
		},
		Sites:          20,
		Start:          time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC),
		Years:          5,
		MinListSize:    2000,
		MaxListSize:    20000,
		AnnualGrowth:   0.01,
		DisclosureBase: 6,
		Seed:           1,
	}
}

func (o Options) validate() error {
	switch {
	case len(o.Measures) == 0:
		return fmt.Errorf("%w: no measures", ErrInvalidOptions)
	case o.Sites <= 0:
		return fmt.Errorf("%w: sites must be positive", ErrInvalidOptions)
	case o.Years <= 0:
		return fmt.Errorf("%w: years must be positive", ErrInvalidOptions)
	case o.Start.Weekday() != time.Monday:
		return fmt.Errorf("%w: start %s is not a Monday", ErrInvalidOptions, o.Start.Format(time.DateOnly))
	case o.MinListSize <= 0 || o.MaxListSize < o.MinListSize:
		return fmt.Errorf("%w: list size range [%d, %d]", ErrInvalidOptions, o.MinListSize, o.MaxListSize)
	case o.DisclosureBase <= 0:
		return fmt.Errorf("%w: disclosure base must be positive", ErrInvalidOptions)
	}
	for _, m := range o.Measures {
		if m.Name == "" || m.WeeklyRate < 0 || m.ZeroSiteFraction < 0 || m.ZeroSiteFraction > 1 {
			return fmt.Errorf("%w: measure %q", ErrInvalidOptions, m.Name)
		}
	}
	return nil
}

// Generate produces one row per (measure, site, week), ordered by
// (measure, site, interval_start). The same options always yield the same rows.
func Generate(opts Options) ([]*domain.IntervalCount, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	start := opts.Start.UTC()
	end := start.AddDate(opts.Years, 0, 0)

	listSizes := make([]int, opts.Sites)
	for i := range listSizes {
		listSizes[i] = opts.MinListSize + rng.IntN(opts.MaxListSize-opts.MinListSize+1)
	}

	var rows []*domain.IntervalCount
	for _, m := range opts.Measures {
		zeroSites := int(math.Round(m.ZeroSiteFraction * float64(opts.Sites)))
		for site := 0; site < opts.Sites; site++ {
			silent := site < zeroSites
			for week := start; week.Before(end); week = week.AddDate(0, 0, 7) {
				years := week.Sub(start).Hours() / (24 * 365.25)
				list := float64(listSizes[site]) * math.Pow(1+opts.AnnualGrowth, years)

				var count float64
				if !silent {
					mean := list / 1000 * m.WeeklyRate * multiplier(m.Seasonal, week.Month())
					if mean > 0 {
						count = distuv.Poisson{Lambda: mean, Src: rng}.Rand()
					}
				}

				rows = append(rows, &domain.IntervalCount{
					Measure:       m.Name,
					SiteID:        int64(site + 1),
					IntervalStart: week,
					Numerator:     RoundToBase(int64(count), opts.DisclosureBase),
					Denominator:   RoundToBase(int64(math.Round(list)), opts.DisclosureBase),
				})
			}
		}
	}

	slices.SortStableFunc(rows, domain.CompareIntervals)
	return rows, nil
}

func multiplier(seasonal map[time.Month]float64, month time.Month) float64 {
	if f, ok := seasonal[month]; ok {
		return f
	}
	return 1
}

// RoundToBase rounds v to the nearest multiple of base, halves away from zero.
func RoundToBase(v int64, base int) int64 {
	b := float64(base)
	return int64(math.Round(float64(v)/b) * b)
}

// WriteCSV writes rows in the loader's input format.
func WriteCSV(w io.Writer, rows []*domain.IntervalCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"measure", "site_id", "interval_start", "numerator", "denominator"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Measure,
			strconv.FormatInt(r.SiteID, 10),
			r.IntervalStart.Format(time.DateOnly),
			strconv.FormatInt(r.Numerator, 10),
			strconv.FormatInt(r.Denominator, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
