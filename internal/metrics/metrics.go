package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwire_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatwire_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatwire_active_connections",
			Help: "Currently open websocket connections",
		},
	)

	TotalConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwire_connections_total",
			Help: "Total websocket connections accepted",
		},
	)

	HandshakeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwire_handshake_failures_total",
			Help: "Websocket handshakes rejected",
		},
		[]string{"reason"},
	)

	// Fanout metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwire_events_received_total",
			Help: "Inbound socket events by type",
		},
		[]string{"type"},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwire_events_delivered_total",
			Help: "Outbound events delivered by type",
		},
		[]string{"type"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwire_delivery_failures_total",
			Help: "Outbound events skipped because a target was closed or backed up",
		},
		[]string{"type"},
	)

	MessagesBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwire_messages_broadcast_total",
			Help: "Persisted messages fanned out to room members",
		},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatwire_messages_deleted_total",
			Help: "Soft-deleted messages announced to room members",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwire_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatwire_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
