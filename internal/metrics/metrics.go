// Package metrics exposes the server's operational counters and gauges
// through github.com/prometheus/client_golang collectors a Prometheus
// scrape target can expose.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Server bundles every collector the authoritative server's tick loop,
// transport, bullet, and admission code update.
type Server struct {
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	TicksProcessed   prometheus.Counter
	SpiralEvents     prometheus.Counter
	BulletsPromoted  prometheus.Counter
	ConnectedClients prometheus.Gauge
	TickDuration     prometheus.Histogram
}

// NewServer registers a fresh Server metric set against reg.
func NewServer(reg prometheus.Registerer) *Server {
	s := &Server{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "byathread",
			Subsystem: "server",
			Name:      "messages_sent_total",
			Help:      "Total messages sent to clients across all channels.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "byathread",
			Subsystem: "server",
			Name:      "messages_received_total",
			Help:      "Total messages received from clients across all channels.",
		}),
		TicksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "byathread",
			Subsystem: "server",
			Name:      "ticks_processed_total",
			Help:      "Total simulation ticks processed.",
		}),
		SpiralEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "byathread",
			Subsystem: "server",
			Name:      "spiral_events_total",
			Help:      "Total frames that exceeded the max-ticks-per-frame clamp.",
		}),
		BulletsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "byathread",
			Subsystem: "server",
			Name:      "bullets_promoted_total",
			Help:      "Total provisional bullets confirmed by the server.",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "byathread",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Current number of connected clients.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "byathread",
			Subsystem: "server",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of each simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
	reg.MustRegister(
		s.MessagesSent,
		s.MessagesReceived,
		s.TicksProcessed,
		s.SpiralEvents,
		s.BulletsPromoted,
		s.ConnectedClients,
		s.TickDuration,
	)
	return s
}
