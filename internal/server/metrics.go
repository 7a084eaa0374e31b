package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the server's Prometheus collectors on a private registry
// so tests can run several servers without duplicate registration panics.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedClients prometheus.Gauge
	SnapshotsSent    prometheus.Counter
	DeltasSent       prometheus.Counter
	BytesSent        prometheus.Counter
	DroppedSessions  prometheus.Counter
	TickDuration     prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scenesync",
			Name:      "connected_clients",
			Help:      "Currently connected feed clients.",
		}),
		SnapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scenesync",
			Name:      "snapshots_sent_total",
			Help:      "Full scene snapshots sent to joining clients.",
		}),
		DeltasSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scenesync",
			Name:      "delta_messages_sent_total",
			Help:      "Delta and removal messages broadcast to clients.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scenesync",
			Name:      "bytes_sent_total",
			Help:      "Payload bytes written to feed clients.",
		}),
		DroppedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scenesync",
			Name:      "dropped_sessions_total",
			Help:      "Sessions closed because their send queue overflowed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scenesync",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scene tick including replication.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.ConnectedClients,
		m.SnapshotsSent,
		m.DeltasSent,
		m.BytesSent,
		m.DroppedSessions,
		m.TickDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
