// Package metrics defines the process-wide Prometheus collectors exposed on
// GET /metrics, grounded in the original's requests_total/request_latency
// pair plus a counter for the orchestrator's empty-completion retry path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openbridge_requests_total",
			Help: "Total HTTP requests handled by the proxy",
		},
		[]string{"path", "method", "status"},
	)

	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openbridge_request_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"path", "method"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openbridge_upstream_requests_total",
			Help: "Total requests sent to the upstream completions API",
		},
		[]string{"status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openbridge_upstream_request_duration_seconds",
			Help:    "Upstream completions request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"status"},
	)

	EmptyCompletionRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openbridge_empty_completion_retries_total",
			Help: "Total times a response was retried after the upstream returned empty output",
		},
	)

	DegradedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openbridge_degraded_requests_total",
			Help: "Total requests retried with a field stripped after an upstream rejection",
		},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openbridge_active_streams",
			Help: "Current number of open SSE response streams",
		},
	)
)
