package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application-specific Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sticker_album",
			Subsystem: "validation",
			Name:      "results_total",
			Help:      "Total number of unlock validation results.",
		},
		[]string{"outcome"},
	)

	VisionRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sticker_album",
			Subsystem: "vision",
			Name:      "request_duration_seconds",
			Help:      "Duration of external vision model requests.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1m
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sticker_album",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Current number of open websocket sessions.",
		},
	)

	ChatMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sticker_album",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total number of chat messages persisted.",
		},
	)
)

func init() {
	Registry.MustRegister(
		ValidationsTotal,
		VisionRequestDuration,
		WSConnections,
		ChatMessagesTotal,
	)
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
