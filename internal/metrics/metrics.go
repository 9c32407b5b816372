// Package metrics exposes ingestion counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deletion reasons used as the "reason" label.
const (
	DeletedStale        = "stale"
	DeletedRetention    = "retention"
	DeletedUnregistered = "unregistered"
	DeletedDuplicate    = "duplicate"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	sourceRuns    *prometheus.CounterVec
	upserted      *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	deleted       *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastSuccessTS *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_ingest",
			Name:      "source_runs_total",
			Help:      "Source pipeline runs by outcome",
		}, []string{"source", "status", "reason"}),
		upserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_ingest",
			Name:      "events_upserted_total",
			Help:      "Canonical events written per source",
		}, []string{"source"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_ingest",
			Name:      "records_rejected_total",
			Help:      "Raw records dropped by validation per source",
		}, []string{"source"}),
		deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events_ingest",
			Name:      "events_deleted_total",
			Help:      "Persisted events removed by reason",
		}, []string{"reason"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "events_ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full ingestion run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		lastSuccessTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "events_ingest",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful run per source",
		}, []string{"source"}),
	}

	reg.MustRegister(m.sourceRuns, m.upserted, m.rejected, m.deleted, m.runDuration, m.lastSuccessTS)
	return m
}

// ObserveSource records one source's outcome within a run.
func (m *Metrics) ObserveSource(source, status, reason string, events, rejected int, at time.Time) {
	if m == nil {
		return
	}
	m.sourceRuns.WithLabelValues(source, status, reason).Inc()
	m.upserted.WithLabelValues(source).Add(float64(events))
	m.rejected.WithLabelValues(source).Add(float64(rejected))
	if reason == "" {
		m.lastSuccessTS.WithLabelValues(source).Set(float64(at.Unix()))
	}
}

// ObserveDeleted counts removed events.
func (m *Metrics) ObserveDeleted(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.WithLabelValues(reason).Add(float64(n))
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
