// Package telemetry exposes Prometheus metrics for the sync engine.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncMetrics records counters and timings for sync cycles and per-subject
// syncs.
type SyncMetrics struct {
	cyclesTotal    prometheus.Counter
	cycleDuration  prometheus.Histogram
	subjectsSynced prometheus.Counter
	syncDuration   prometheus.Histogram
	syncErrors     prometheus.Counter
}

// NewRegistry creates a Prometheus registry with the standard process and
// Go runtime collectors attached.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewSyncMetrics registers the sync metrics on the given registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	factory := promauto.With(reg)
	return &SyncMetrics{
		cyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "shiftsync_cycles_total",
			Help: "Number of sync cycles started.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shiftsync_cycle_duration_seconds",
			Help:    "Duration of full sync cycles.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		subjectsSynced: factory.NewCounter(prometheus.CounterOpts{
			Name: "shiftsync_subjects_synced_total",
			Help: "Number of successful subject syncs.",
		}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shiftsync_subject_sync_duration_seconds",
			Help:    "Duration of individual subject syncs.",
			Buckets: prometheus.DefBuckets,
		}),
		syncErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "shiftsync_sync_errors_total",
			Help: "Number of failed subject syncs and cycle-level errors.",
		}),
	}
}

// CycleStarted counts a new cycle.
func (m *SyncMetrics) CycleStarted() {
	m.cyclesTotal.Inc()
}

// CycleFinished records a completed cycle's duration.
func (m *SyncMetrics) CycleFinished(d time.Duration) {
	m.cycleDuration.Observe(d.Seconds())
}

// SubjectSynced counts a successful subject sync and its duration.
func (m *SyncMetrics) SubjectSynced(d time.Duration) {
	m.subjectsSynced.Inc()
	m.syncDuration.Observe(d.Seconds())
}

// SyncErrored counts a failed subject sync or cycle-level error.
func (m *SyncMetrics) SyncErrored() {
	m.syncErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
