package metrics_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/kiranshivaraju/errtrack/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.RecordTracked("contract", true)
	m.RecordTracked("contract", false)
	m.RecordTracked("contract", false)
	m.RecordTrackingFailure("invoice", metrics.ReasonUnsupportedEntityType)
	m.RecordCleanup(4, nil)
	m.RecordCleanup(0, errors.New("db down"))

	expected := `
# HELP errtrack_tracked_total Error occurrences recorded, by entity type and whether the fingerprint was new
# TYPE errtrack_tracked_total counter
errtrack_tracked_total{entity_type="contract",outcome="new"} 1
errtrack_tracked_total{entity_type="contract",outcome="repeat"} 2
# HELP errtrack_cleanup_deleted_total Resolved or ignored error records removed by retention cleanup
# TYPE errtrack_cleanup_deleted_total counter
errtrack_cleanup_deleted_total 4
# HELP errtrack_tracking_failures_total Tracking attempts that failed and were swallowed by the logger
# TYPE errtrack_tracking_failures_total counter
errtrack_tracking_failures_total{entity_type="invoice",reason="unsupported_entity_type"} 1
# HELP errtrack_cleanup_runs_total Retention cleanup runs by result
# TYPE errtrack_cleanup_runs_total counter
errtrack_cleanup_runs_total{result="error"} 1
errtrack_cleanup_runs_total{result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"errtrack_tracked_total", "errtrack_cleanup_deleted_total",
		"errtrack_tracking_failures_total", "errtrack_cleanup_runs_total"))
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordTracked("contract", true)
		m.RecordTrackingFailure("contract", metrics.ReasonPanic)
		m.RecordCleanup(1, nil)
	})
}
