// Package metrics exposes Prometheus instrumentation for the relay: turn
// throughput, per-provider call outcomes and latency, retry and repair
// counts, and transcript size.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets covers inference latencies from 100ms to the 120s ceiling.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// TurnsTotal counts accepted user turns.
	TurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duochat_turns_total",
			Help: "Accepted user turns",
		},
	)

	// ProviderRequestsTotal counts individual provider call attempts by outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duochat_provider_requests_total",
			Help: "Provider call attempts",
		},
		[]string{"provider", "status"},
	)

	// ProviderLatency records per-attempt provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duochat_provider_latency_seconds",
			Help:    "Provider call latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// RetriesTotal counts backoff retries per provider.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duochat_provider_retries_total",
			Help: "Backoff retries",
		},
		[]string{"provider"},
	)

	// FormatRepairsTotal counts alternation format-repair attempts per provider.
	FormatRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duochat_format_repairs_total",
			Help: "Alternation format repairs",
		},
		[]string{"provider"},
	)

	// HistoryMessages tracks the current length of the shared history.
	HistoryMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "duochat_history_messages",
			Help: "Messages in the shared history",
		},
	)

	// WebsocketConnections tracks active transcript feed connections.
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "duochat_websocket_connections_active",
			Help: "Active websocket transcript connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TurnsTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		RetriesTotal,
		FormatRepairsTotal,
		HistoryMessages,
		WebsocketConnections,
	)
}
