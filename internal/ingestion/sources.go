package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// RawRow is one unvalidated input record. Fields hold the source text as-is;
// an empty string means the value was missing.
type RawRow struct {
	Line          int // 1-based source line (or row ordinal for database sources)
	Measure       string
	SiteID        string
	IntervalStart string
	Numerator     string
	Denominator   string
}

// IntervalSource provides raw interval rows from an upstream collaborator.
type IntervalSource interface {
	// Fetch returns all rows. Rows may be unordered; the Loader sorts and merges them.
	Fetch(ctx context.Context) ([]RawRow, error)

	// Name identifies the source in logs and run records.
	Name() string
}

// ErrMissingColumn is returned when a required column is absent from a CSV header.
var ErrMissingColumn = errors.New("missing required column")

// columnAliases maps accepted header names to canonical columns.
var columnAliases = map[string]string{
	"measure":            "measure",
	"site_id":            "site_id",
	"site":               "site_id",
	"practice":           "site_id",
	"practice_pseudo_id": "site_id",
	"interval_start":     "interval_start",
	"numerator":          "numerator",
	"denominator":        "denominator",
	"list_size":          "denominator",
}

var requiredColumns = []string{"measure", "site_id", "interval_start", "numerator", "denominator"}

// CSVSource reads the long input table from a CSV file with a header row.
type CSVSource struct {
	path   string
	reader io.Reader
}

// NewCSVFileSource creates a source reading from a file path.
func NewCSVFileSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// NewCSVSource creates a source reading from r.
func NewCSVSource(r io.Reader) *CSVSource {
	return &CSVSource{reader: r, path: "reader"}
}

// Name returns the file path, or "reader" for in-memory sources.
func (s *CSVSource) Name() string {
	return "csv:" + s.path
}

// Fetch parses all rows. Individual cell problems are left to the Loader;
// only structural errors (unreadable file, bad header) are returned.
func (s *CSVSource) Fetch(ctx context.Context) ([]RawRow, error) {
	r := s.reader
	if r == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", s.path, err)
		}
		defer f.Close()
		r = f
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []RawRow
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			// Malformed quoting on one line: keep it as an empty row so the
			// Loader counts it as rejected.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, RawRow{Line: line})
				continue
			}
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		rows = append(rows, RawRow{
			Line:          line,
			Measure:       cell(rec, idx["measure"]),
			SiteID:        cell(rec, idx["site_id"]),
			IntervalStart: cell(rec, idx["interval_start"]),
			Numerator:     cell(rec, idx["numerator"]),
			Denominator:   cell(rec, idx["denominator"]),
		})
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(requiredColumns))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := columnAliases[name]; ok {
			if _, dup := idx[canonical]; !dup {
				idx[canonical] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return idx, nil
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
