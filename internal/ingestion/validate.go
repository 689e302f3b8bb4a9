package ingestion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"seasonality-lab/internal/domain"
)

// Row validation errors.
var (
	// ErrInvalidRow is returned for rows failing the input schema.
	ErrInvalidRow = errors.New("invalid input row")

	// ErrNonPositiveDenominator is returned for rows whose denominator is
	// missing or <= 0. It wraps ErrInvalidRow.
	ErrNonPositiveDenominator = fmt.Errorf("%w: missing or non-positive denominator", ErrInvalidRow)
)

// RowError describes why a single row was excluded.
type RowError struct {
	Line   int
	Field  string
	Reason string
	err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Reason)
}

// Unwrap returns the sentinel the row error classifies as.
func (e *RowError) Unwrap() error {
	return e.err
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// missingTokens are treated as an absent value.
var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"nan":  {},
	"null": {},
	"none": {},
}

func isMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(s)]
	return ok
}

// ParseRow validates a raw row against the input schema.
// Errors are *RowError wrapping ErrInvalidRow or ErrNonPositiveDenominator.
func ParseRow(raw RawRow) (*domain.IntervalCount, error) {
	measure := strings.TrimSpace(raw.Measure)
	if isMissing(measure) {
		return nil, rowErr(raw.Line, "measure", "missing", ErrInvalidRow)
	}

	siteID, err := strconv.ParseInt(strings.TrimSpace(raw.SiteID), 10, 64)
	if err != nil {
		return nil, rowErr(raw.Line, "site_id", fmt.Sprintf("not an integer: %q", raw.SiteID), ErrInvalidRow)
	}

	start, err := parseDate(raw.IntervalStart)
	if err != nil {
		return nil, rowErr(raw.Line, "interval_start", fmt.Sprintf("not an ISO date: %q", raw.IntervalStart), ErrInvalidRow)
	}

	if isMissing(raw.Numerator) {
		return nil, rowErr(raw.Line, "numerator", "missing", ErrInvalidRow)
	}
	num, err := parseCount(raw.Numerator)
	if err != nil {
		return nil, rowErr(raw.Line, "numerator", err.Error(), ErrInvalidRow)
	}
	if num < 0 {
		return nil, rowErr(raw.Line, "numerator", fmt.Sprintf("negative: %d", num), ErrInvalidRow)
	}

	if isMissing(raw.Denominator) {
		return nil, rowErr(raw.Line, "denominator", "missing", ErrNonPositiveDenominator)
	}
	den, err := parseCount(raw.Denominator)
	if err != nil {
		return nil, rowErr(raw.Line, "denominator", err.Error(), ErrInvalidRow)
	}
	if den <= 0 {
		return nil, rowErr(raw.Line, "denominator", fmt.Sprintf("non-positive: %d", den), ErrNonPositiveDenominator)
	}

	return &domain.IntervalCount{
		Measure:       measure,
		SiteID:        siteID,
		IntervalStart: start,
		Numerator:     num,
		Denominator:   den,
	}, nil
}

func rowErr(line int, field, reason string, sentinel error) *RowError {
	return &RowError{Line: line, Field: field, Reason: reason, err: sentinel}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseCount accepts integers, and floats with an integral value
// ("12.0" is written by upstream tools when a column held missing values).
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer count: %q", s)
	}
	return int64(f), nil
}
