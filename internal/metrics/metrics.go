// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

// Package metrics holds the Prometheus collectors exported on
// /metrics/prometheus. Collectors are package globals registered with the
// default registry; callers use the Record* helpers so label values stay
// consistent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pinksync"

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Current number of registered real-time connections",
		},
	)

	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connection attempts by handshake outcome",
		},
		[]string{"result"}, // "accepted", "rejected_origin", "rejected_auth", "rejected_closed"
	)

	DisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Connections torn down, by reason",
		},
		[]string{"reason"},
	)

	// Inbound message metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound client messages by type",
		},
		[]string{"type"},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound client messages dropped without processing",
		},
		[]string{"reason"}, // "malformed", "unknown_type", "invalid", "rate_limited"
	)

	// Room metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Current number of non-empty rooms",
		},
	)

	// Dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Events dispatched, by event type and origin (local or backplane)",
		},
		[]string{"event_type", "origin"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-recipient delivery attempts by result",
		},
		[]string{"result"}, // "delivered", "failed"
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time from dispatch call to all member sends completing",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// Backplane metrics
	BackplanePublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backplane_publish_total",
			Help:      "Backplane publish attempts by result",
		},
		[]string{"backend", "result"}, // result: "ok", "error", "breaker_open"
	)

	BackplaneReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backplane_received_total",
			Help:      "Backplane messages received by this instance",
		},
		[]string{"backend", "result"}, // result: "delivered", "echo", "invalid"
	)

	BackplaneResubscribes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backplane_resubscribes_total",
			Help:      "Backplane subscription restarts after failure",
		},
		[]string{"backend"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event source metrics
	SyntheticEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_source_generated_total",
			Help:      "Synthetic events generated by the background source",
		},
		[]string{"event_type", "result"},
	)

	// HTTP (ops and transport upgrade) metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "HTTP requests currently being served",
		},
	)
)

// RecordConnection counts a handshake outcome and adjusts the active gauge
// on acceptance.
func RecordConnection(result string) {
	ConnectionsTotal.WithLabelValues(result).Inc()
	if result == "accepted" {
		ConnectionsActive.Inc()
	}
}

// RecordDisconnect counts a teardown and decrements the active gauge.
func RecordDisconnect(reason string) {
	DisconnectsTotal.WithLabelValues(reason).Inc()
	ConnectionsActive.Dec()
}

// RecordMessageReceived counts an inbound message that passed decoding.
func RecordMessageReceived(msgType string) {
	MessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordMessageDropped counts an inbound message dropped for reason.
func RecordMessageDropped(reason string) {
	MessagesDropped.WithLabelValues(reason).Inc()
}

// SetRoomsActive publishes the current room count.
func SetRoomsActive(n int) {
	RoomsActive.Set(float64(n))
}

// RecordDispatch records one dispatch and its per-recipient outcomes.
func RecordDispatch(eventType, origin string, delivered, failed int, duration time.Duration) {
	DispatchTotal.WithLabelValues(eventType, origin).Inc()
	if delivered > 0 {
		DeliveriesTotal.WithLabelValues("delivered").Add(float64(delivered))
	}
	if failed > 0 {
		DeliveriesTotal.WithLabelValues("failed").Add(float64(failed))
	}
	DispatchDuration.Observe(duration.Seconds())
}

// RecordBackplanePublish records a publish attempt.
func RecordBackplanePublish(backend, result string) {
	BackplanePublished.WithLabelValues(backend, result).Inc()
}

// RecordBackplaneReceive records an inbound backplane message.
func RecordBackplaneReceive(backend, result string) {
	BackplaneReceived.WithLabelValues(backend, result).Inc()
}

// RecordBackplaneResubscribe records a subscription restart.
func RecordBackplaneResubscribe(backend string) {
	BackplaneResubscribes.WithLabelValues(backend).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change.
// States are encoded 0=closed, 1=half-open, 2=open.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordSyntheticEvent records one event source iteration.
func RecordSyntheticEvent(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SyntheticEvents.WithLabelValues(eventType, result).Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}
