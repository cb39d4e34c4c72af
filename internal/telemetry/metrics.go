package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsBroadcast counts events published on the event bus by type
	EventsBroadcast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardbridge",
			Name:      "events_broadcast_total",
			Help:      "Total number of events published on the event bus",
		},
		[]string{"type"},
	)

	// EventsDropped counts events dropped because a subscriber queue was full
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardbridge",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped for slow subscribers",
		},
		[]string{"type"},
	)

	// SubscribersConnected tracks currently attached WebSocket subscribers
	SubscribersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cardbridge",
			Name:      "subscribers_connected",
			Help:      "Number of currently connected event subscribers",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(EventsBroadcast)
		prometheus.DefaultRegisterer.Register(EventsDropped)
		prometheus.DefaultRegisterer.Register(SubscribersConnected)
	})
}
