package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	OpenAPIResponseViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openapi_response_violations_total",
			Help: "Total number of API responses that did not match the OpenAPI document",
		},
		[]string{"operation"},
	)

	// WebSocket metrics
	WebSocketConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
		[]string{"channel"},
	)

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of frames queued for WebSocket clients",
		},
		[]string{"channel", "event"},
	)

	// Message log metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_appended_total",
			Help: "Total number of messages appended to the log",
		},
		[]string{"path"},
	)

	MessageLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_message_log_size",
			Help: "Number of messages currently held in the log",
		},
	)

	// Subscription metrics
	SubscribersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pubsub_subscribers_active",
			Help: "Number of active subscription listeners",
		},
		[]string{"topic"},
	)

	ListenersEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_listeners_evicted_total",
			Help: "Total number of listeners dropped because their buffer was full",
		},
		[]string{"channel"},
	)

	// AMQP mirror metrics
	AMQPMessagesForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amqp_messages_forwarded_total",
			Help: "Total number of messages forwarded to the AMQP exchange",
		},
		[]string{"result"},
	)
)
