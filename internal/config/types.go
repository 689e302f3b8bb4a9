package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Date is a calendar date stored as UTC midnight.
type Date struct {
	time.Time
}

// NewDate returns the UTC midnight of the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// UnmarshalYAML decodes a YYYY-MM-DD scalar.
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML encodes the date as YYYY-MM-DD.
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MonthDay is a day of the year independent of the year, written "MM-DD".
type MonthDay struct {
	Month int
	Day   int
}

// ParseMonthDay parses an "MM-DD" string.
func ParseMonthDay(s string) (MonthDay, error) {
	var md MonthDay
	if _, err := fmt.Sscanf(s, "%d-%d", &md.Month, &md.Day); err != nil {
		return MonthDay{}, fmt.Errorf("parse month-day %q: %w", s, err)
	}
	if err := md.validate(); err != nil {
		return MonthDay{}, err
	}
	return md, nil
}

// String returns the value in "MM-DD" form.
func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", md.Month, md.Day)
}

// UnmarshalYAML decodes an "MM-DD" scalar.
func (md *MonthDay) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMonthDay(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*md = parsed
	return nil
}

// MarshalYAML encodes the value as "MM-DD".
func (md MonthDay) MarshalYAML() (interface{}, error) {
	return md.String(), nil
}

// before reports whether md falls strictly before other in the calendar year.
func (md MonthDay) before(other MonthDay) bool {
	if md.Month != other.Month {
		return md.Month < other.Month
	}
	return md.Day < other.Day
}

// daysIn is the maximum day per month; 29 for February so leap days are accepted.
var daysIn = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func (md MonthDay) validate() error {
	if md.Month < 1 || md.Month > 12 {
		return fmt.Errorf("month %d out of range", md.Month)
	}
	if md.Day < 1 || md.Day > daysIn[md.Month] {
		return fmt.Errorf("day %d out of range for month %d", md.Day, md.Month)
	}
	return nil
}

func monthDayOf(t time.Time) MonthDay {
	return MonthDay{Month: int(t.Month()), Day: t.Day()}
}
