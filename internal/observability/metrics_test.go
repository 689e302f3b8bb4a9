package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"seasonality-lab/internal/domain"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.RecordRowsRead(10)
	m.RecordRowsLoaded(7)
	m.RecordExclusions("load", domain.ExclusionNonPositiveDenom, 2)
	m.RecordExclusions("load", domain.ExclusionInvalidRow, 1)
	m.RecordExclusions("load", domain.ExclusionInvalidRow, 0)
	m.RecordTest(TestOutcomeSignificant)
	m.RecordTest(TestOutcomeUndefined)
	m.RecordTest(TestOutcomeUndefined)
	m.ObserveStage("classify", time.Now(), 7)
	m.RecordPipelineRun(domain.RunStatusSucceeded, time.Second)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.RowsRead))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RowsLoaded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsExcluded.WithLabelValues("load", "non_positive_denom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsExcluded.WithLabelValues("load", "invalid_row")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignificanceTests.WithLabelValues(TestOutcomeUndefined)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.StageRows.WithLabelValues("classify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("succeeded")))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulRun), 0.0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRowsRead(1)
		m.RecordRowsLoaded(1)
		m.RecordExclusions("load", domain.ExclusionInvalidRow, 1)
		m.ObserveStage("load", time.Now(), 1)
		m.RecordTest(TestOutcomeNotSig)
		m.RecordDBQuery("postgres", "insert", 0.1, nil)
		m.RecordPipelineRun(domain.RunStatusFailed, time.Second)
	})
}
