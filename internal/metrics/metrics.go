// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Status Store Metrics
	StoreEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_store_entries",
			Help: "Current number of users with a known presence status",
		},
	)

	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_store_writes_total",
			Help: "Total number of status entries written to the store",
		},
		[]string{"source"}, // hydration, channel, local, teardown, reset
	)

	// Presence Channel Metrics
	ChannelState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_channel_state",
			Help: "Presence channel state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		},
	)

	ChannelReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_channel_reconnect_attempts_total",
			Help: "Total number of presence hub reconnect attempts",
		},
	)

	ChannelConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_channel_connects_total",
			Help: "Total number of presence hub connection attempts by result",
		},
		[]string{"result"}, // success, dial_error, handshake_error
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_hub_messages_received_total",
			Help: "Total number of hub messages received by invocation target or message type",
		},
		[]string{"target"},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_hub_messages_sent_total",
			Help: "Total number of outbound hub invocations by result",
		},
		[]string{"target", "result"}, // result: sent, not_connected, error
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_hub_errors_total",
			Help: "Total number of presence hub protocol or transport errors",
		},
		[]string{"error_type"},
	)

	// Status Fetcher Metrics
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presence_fetch_duration_seconds",
			Help:    "Duration of batch status fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FetchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_fetch_requests_total",
			Help: "Total number of batch status fetches by result",
		},
		[]string{"result"}, // success, error, skipped
	)

	FetchEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_fetch_entries_total",
			Help: "Total number of status entries returned by the REST endpoint",
		},
		[]string{"outcome"}, // accepted, dropped
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Inspector API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of inspector API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of inspector API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordStoreWrite records entries written by source and the resulting store size.
func RecordStoreWrite(source string, written, size int) {
	StoreWrites.WithLabelValues(source).Add(float64(written))
	StoreEntries.Set(float64(size))
}

// SetChannelState records the numeric channel state.
func SetChannelState(state int) {
	ChannelState.Set(float64(state))
}

// RecordReconnectAttempt counts one scheduled reconnect.
func RecordReconnectAttempt() {
	ChannelReconnects.Inc()
}

// RecordConnect records the outcome of one dial and handshake.
func RecordConnect(result string) {
	ChannelConnects.WithLabelValues(result).Inc()
}

// RecordMessageReceived counts one inbound hub message.
func RecordMessageReceived(target string) {
	WSMessagesReceived.WithLabelValues(target).Inc()
}

// RecordMessageSent counts one outbound invocation attempt.
func RecordMessageSent(target, result string) {
	WSMessagesSent.WithLabelValues(target, result).Inc()
}

// RecordHubError counts one protocol or transport error.
func RecordHubError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordFetch records one batch status fetch.
func RecordFetch(duration time.Duration, accepted, dropped int, err error) {
	FetchDuration.Observe(duration.Seconds())
	if err != nil {
		FetchRequests.WithLabelValues("error").Inc()
		return
	}
	FetchRequests.WithLabelValues("success").Inc()
	FetchEntries.WithLabelValues("accepted").Add(float64(accepted))
	FetchEntries.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordFetchSkipped counts a fetch that had no ids and never hit the network.
func RecordFetchSkipped() {
	FetchRequests.WithLabelValues("skipped").Inc()
}

// RecordAPIRequest records an inspector API request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
