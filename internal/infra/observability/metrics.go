package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the console.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	snapshotPushes    *prometheus.CounterVec
	snapshotSize      *prometheus.GaugeVec
	remoteWrites      *prometheus.CounterVec
	authEvents        *prometheus.CounterVec
	relaySends        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// console metrics in it. A private registry lets tests call NewMetrics
// repeatedly without "duplicate collector" panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "occ_operation_duration_seconds",
				Help:    "Duration of console operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "occ_external_errors_total",
				Help: "Total errors from external collaborators.",
			},
			[]string{"service"},
		),
		snapshotPushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "occ_snapshot_pushes_total",
				Help: "Total snapshot pushes received per collection.",
			},
			[]string{"collection"},
		),
		snapshotSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "occ_snapshot_documents",
				Help: "Documents in the latest snapshot per collection.",
			},
			[]string{"collection"},
		),
		remoteWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "occ_remote_writes_total",
				Help: "Remote create/update/delete calls by outcome.",
			},
			[]string{"collection", "op", "outcome"},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "occ_auth_events_total",
				Help: "Session events published by the auth collaborator.",
			},
			[]string{"event"},
		),
		relaySends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "occ_relay_sends_total",
				Help: "Outbound chat messages by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// RecordSnapshot counts a push and records its size.
func (m *Metrics) RecordSnapshot(collection string, size int) {
	m.snapshotPushes.WithLabelValues(collection).Inc()
	m.snapshotSize.WithLabelValues(collection).Set(float64(size))
}

// IncrWrite counts a remote write. outcome is "ok" or "error".
func (m *Metrics) IncrWrite(collection, op, outcome string) {
	m.remoteWrites.WithLabelValues(collection, op, outcome).Inc()
}

// IncrAuthEvent counts a session event ("signed_in", "refreshed", "signed_out", ...).
func (m *Metrics) IncrAuthEvent(event string) {
	m.authEvents.WithLabelValues(event).Inc()
}

// IncrRelay counts an outbound chat message.
func (m *Metrics) IncrRelay(outcome string) {
	m.relaySends.WithLabelValues(outcome).Inc()
}

// Counters returns a flat snapshot of the main counters for GET /v1/status.
func (m *Metrics) Counters(collections ...string) map[string]int64 {
	out := map[string]int64{
		"auth_signed_in":  int64(getCounterValue(m.authEvents, "signed_in")),
		"auth_refreshed":  int64(getCounterValue(m.authEvents, "refreshed")),
		"auth_signed_out": int64(getCounterValue(m.authEvents, "signed_out")),
		"relay_ok":        int64(getCounterValue(m.relaySends, "ok")),
		"relay_error":     int64(getCounterValue(m.relaySends, "error")),
	}
	for _, c := range collections {
		out["pushes_"+c] = int64(getCounterValue(m.snapshotPushes, c))
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
