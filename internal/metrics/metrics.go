// Package metrics declares the Prometheus collectors exported by the game
// portal server: HTTP request instrumentation and chat engine activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts REST requests by method, route and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameportal_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	// APIRequestDuration observes REST latency by method and route.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gameportal_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ChatConnections is the number of attached WebSocket connections.
	ChatConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gameportal_chat_connections",
			Help: "Current number of attached chat connections",
		},
	)

	// ChatParticipants is the number of joined participants.
	ChatParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gameportal_chat_participants",
			Help: "Current number of joined chat participants",
		},
	)

	// ChatEventsTotal counts inbound chat events by kind and outcome.
	ChatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameportal_chat_events_total",
			Help: "Total number of inbound chat events",
		},
		[]string{"kind", "outcome"}, // outcome: handled, dropped, panic
	)

	// ChatBroadcastsTotal counts outbound fan-outs by event type.
	ChatBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameportal_chat_broadcasts_total",
			Help: "Total number of outbound chat fan-outs",
		},
		[]string{"type"},
	)

	// ChatSendFailures counts per-connection delivery failures during fan-out.
	ChatSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gameportal_chat_send_failures_total",
			Help: "Total number of per-connection chat send failures",
		},
	)
)

// RecordAPIRequest records one completed REST request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordChatEvent records one processed inbound chat event.
func RecordChatEvent(kind, outcome string) {
	ChatEventsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordBroadcast records one fan-out and its failed deliveries.
func RecordBroadcast(eventType string, failures int) {
	ChatBroadcastsTotal.WithLabelValues(eventType).Inc()
	if failures > 0 {
		ChatSendFailures.Add(float64(failures))
	}
}

// SetChatPresence updates the connection and participant gauges.
func SetChatPresence(connections, participants int) {
	ChatConnections.Set(float64(connections))
	ChatParticipants.Set(float64(participants))
}
