// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// BackendCallDuration tracks calls made to the backend API.
	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_call_duration_seconds",
			Help:    "Backend API call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op", "status"},
	)

	// MutationsTotal counts optimistic mutations by kind and outcome.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_mutations_total",
			Help: "Optimistic inbox mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// StaleResponsesTotal counts server answers dropped because a newer local
	// write superseded them.
	StaleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_stale_responses_total",
			Help: "Server responses dropped as stale",
		},
		[]string{"kind"},
	)

	// WorkspacesActive tracks open inbox workspaces.
	WorkspacesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inbox_workspaces_active",
			Help: "Number of open inbox workspaces",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// EventsPublishedTotal counts inbox events published to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_events_published_total",
			Help: "Inbox events published",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordBackendCall records metrics for one backend round trip.
func RecordBackendCall(op, status string, duration float64) {
	BackendCallDuration.WithLabelValues(op, status).Observe(duration)
}

// RecordMutation records the outcome of an optimistic mutation.
func RecordMutation(kind, outcome string) {
	MutationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordStale records a dropped stale response.
func RecordStale(kind string) {
	StaleResponsesTotal.WithLabelValues(kind).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
