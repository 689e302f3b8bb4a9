package config

import (
	"time"

	"seasonality-lab/internal/domain"
)

// SeasonOf returns the season label for a calendar month, or SeasonNone.
func (c *Config) SeasonOf(month time.Month) domain.Season {
	m := int(month)
	for _, s := range c.Seasons {
		for _, sm := range s.Months {
			if sm == m {
				return domain.Season(s.Name)
			}
		}
	}
	return domain.SeasonNone
}

// ReferenceYear returns the 12-month cycle a date belongs to.
// Months up to and including the cutoff month belong to the previous year.
func (c *Config) ReferenceYear(t time.Time) int {
	if int(t.Month()) <= c.CutoffMonth {
		return t.Year() - 1
	}
	return t.Year()
}

// PandemicPeriod labels a date relative to the pandemic window.
func (c *Config) PandemicPeriod(t time.Time) domain.PandemicPeriod {
	switch {
	case t.Before(c.Pandemic.Start.Time):
		return domain.PandemicBefore
	case t.After(c.Pandemic.End.Time):
		return domain.PandemicAfter
	default:
		return domain.PandemicDuring
	}
}

// InBlackout reports whether a date falls inside the holiday blackout window.
func (c *Config) InBlackout(t time.Time) bool {
	md := monthDayOf(t)
	start, end := c.HolidayBlackout.Start, c.HolidayBlackout.End
	if !end.before(start) {
		return !md.before(start) && !end.before(md)
	}
	// Window wraps over the new year.
	return !md.before(start) || !end.before(md)
}
