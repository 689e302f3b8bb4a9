package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ExclusionReason classifies a non-fatal row or stratum exclusion.
type ExclusionReason string

// Exclusion reasons
const (
	ExclusionInvalidRow        ExclusionReason = "invalid_row"        // schema failure at load
	ExclusionNonPositiveDenom  ExclusionReason = "non_positive_denom" // missing or <= 0 denominator
	ExclusionHolidayBlackout   ExclusionReason = "holiday_blackout"   // interval starts in the blackout window
	ExclusionMissingBaseline   ExclusionReason = "missing_baseline"   // no usable reference-season baseline
	ExclusionDegenerateTest    ExclusionReason = "degenerate_test"    // empty group or zero exposure
	ExclusionInsufficientTrend ExclusionReason = "insufficient_trend" // fewer than two points
)

// ExclusionLedger counts exclusions per stage and reason.
// Not safe for concurrent use.
type ExclusionLedger struct {
	counts map[string]map[ExclusionReason]int
}

// NewExclusionLedger creates an empty ledger.
func NewExclusionLedger() *ExclusionLedger {
	return &ExclusionLedger{counts: make(map[string]map[ExclusionReason]int)}
}

// Add records n exclusions for a stage.
func (l *ExclusionLedger) Add(stage string, reason ExclusionReason, n int) {
	if n <= 0 {
		return
	}
	if l.counts[stage] == nil {
		l.counts[stage] = make(map[ExclusionReason]int)
	}
	l.counts[stage][reason] += n
}

// Count returns the number of exclusions recorded for a stage and reason.
func (l *ExclusionLedger) Count(stage string, reason ExclusionReason) int {
	return l.counts[stage][reason]
}

// Total returns the number of exclusions for a reason across all stages.
func (l *ExclusionLedger) Total(reason ExclusionReason) int {
	total := 0
	for _, m := range l.counts {
		total += m[reason]
	}
	return total
}

// ExclusionEntry is one ledger line.
type ExclusionEntry struct {
	Stage  string
	Reason ExclusionReason
	Count  int
}

// Entries returns all ledger lines sorted by stage, then reason.
func (l *ExclusionLedger) Entries() []ExclusionEntry {
	var out []ExclusionEntry
	for stage, m := range l.counts {
		for reason, n := range m {
			out = append(out, ExclusionEntry{Stage: stage, Reason: reason, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// String renders the ledger for log lines and error messages.
func (l *ExclusionLedger) String() string {
	entries := l.Entries()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s/%s=%d", e.Stage, e.Reason, e.Count))
	}
	return strings.Join(parts, ", ")
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

// Run statuses
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord describes one batch run. Corresponds to the runs table.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Status      RunStatus
	DataVersion string // sha256 of the loaded input rows
	ConfigHash  string // sha256 of the effective configuration

	RowsLoaded   int
	RowsDropped  int
	RowsRejected int
	Intervals    int
	Baselines    int
	Tests        int
	Summaries    int
	Trends       int
	Error        string
}
