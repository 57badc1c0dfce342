// Package metrics holds the relay's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the relay's counters and gauges. Register them once per
// process via New.
type Metrics struct {
	// RequestsTotal counts chat requests by terminal outcome
	// (success, error, cancelled, unauthorized, model_not_available,
	// secret_missing).
	RequestsTotal *prometheus.CounterVec

	// ChunksForwarded counts provider chunks forwarded to clients.
	ChunksForwarded prometheus.Counter

	// UsageInserts counts usage log inserts by status.
	UsageInserts *prometheus.CounterVec

	// UsageInsertFailures counts failed usage log inserts.
	UsageInsertFailures prometheus.Counter

	// StreamsInFlight tracks currently open generation streams.
	StreamsInFlight prometheus.Gauge
}

// New creates and registers the relay metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rotachat",
			Name:      "chat_requests_total",
			Help:      "Chat requests by terminal outcome",
		}, []string{"outcome"}),
		ChunksForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rotachat",
			Name:      "chunks_forwarded_total",
			Help:      "Provider chunks forwarded to clients",
		}),
		UsageInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rotachat",
			Name:      "usage_inserts_total",
			Help:      "Usage log rows inserted by status",
		}, []string{"status"}),
		UsageInsertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rotachat",
			Name:      "usage_insert_failures_total",
			Help:      "Usage log insert failures",
		}),
		StreamsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rotachat",
			Name:      "streams_in_flight",
			Help:      "Currently open generation streams",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.ChunksForwarded,
		m.UsageInserts,
		m.UsageInsertFailures,
		m.StreamsInFlight,
	)

	return m
}
