// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for conversational-engine
// latencies, ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "difygate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "difygate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "difygate_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// EngineRequestsTotal counts invocations sent to the backend engine.
	EngineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "difygate_engine_requests_total",
			Help: "Engine invocations",
		},
		[]string{"mode", "status"},
	)

	// EngineLatency records backend engine latency in seconds.
	EngineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "difygate_engine_latency_seconds",
			Help:    "Engine latency",
			Buckets: LLMBuckets,
		},
		[]string{"mode"},
	)

	// EngineTokensTotal counts tokens reported by the engine, by direction
	// (prompt/completion).
	EngineTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "difygate_engine_tokens_total",
			Help: "Token count",
		},
		[]string{"direction"},
	)

	// SessionLookupsTotal counts conversation-record lookups by result
	// (hit, miss, fault, decode_error).
	SessionLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "difygate_session_lookups_total",
			Help: "Conversation record lookups",
		},
		[]string{"result"},
	)

	// SessionSavesTotal counts conversation-record writes by status (ok, fault).
	SessionSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "difygate_session_saves_total",
			Help: "Conversation record writes",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		EngineRequestsTotal,
		EngineLatency,
		EngineTokensTotal,
		SessionLookupsTotal,
		SessionSavesTotal,
	)
}
