// Package metrics exposes Prometheus counters for error tracking and
// retention cleanup.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "errtrack"

// Outcome labels of the tracked counter.
const (
	OutcomeNew    = "new"
	OutcomeRepeat = "repeat"
)

// Failure reasons of the failures counter.
const (
	ReasonUnsupportedEntityType = "unsupported_entity_type"
	ReasonValidation            = "validation"
	ReasonPersistence           = "persistence"
	ReasonPanic                 = "panic"
	ReasonOther                 = "other"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	tracked        *prometheus.CounterVec
	failures       *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	cleanupRuns    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tracked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracked_total",
				Help:      "Error occurrences recorded, by entity type and whether the fingerprint was new",
			},
			[]string{"entity_type", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracking_failures_total",
				Help:      "Tracking attempts that failed and were swallowed by the logger",
			},
			[]string{"entity_type", "reason"},
		),
		cleanupDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_deleted_total",
				Help:      "Resolved or ignored error records removed by retention cleanup",
			},
		),
		cleanupRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_runs_total",
				Help:      "Retention cleanup runs by result",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{m.tracked, m.failures, m.cleanupDeleted, m.cleanupRuns} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// RecordTracked counts a successful tracking call.
func (m *Metrics) RecordTracked(entityType string, isNew bool) {
	if m == nil {
		return
	}
	outcome := OutcomeRepeat
	if isNew {
		outcome = OutcomeNew
	}
	m.tracked.WithLabelValues(entityType, outcome).Inc()
}

// RecordTrackingFailure counts a swallowed tracking failure.
func (m *Metrics) RecordTrackingFailure(entityType, reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(entityType, reason).Inc()
}

// RecordCleanup counts one cleanup run and the rows it deleted.
func (m *Metrics) RecordCleanup(deleted int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.cleanupRuns.WithLabelValues("ok").Inc()
	m.cleanupDeleted.Add(float64(deleted))
}
