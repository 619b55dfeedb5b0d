package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxhub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxhub_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voxhub_ws_connections_active",
			Help: "Currently open websocket connections",
		},
		[]string{"namespace"},
	)

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxhub_ws_events_total",
			Help: "Total inbound realtime events dispatched",
		},
		[]string{"namespace", "event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxhub_ws_events_dropped_total",
			Help: "Inbound events with no registered handler",
		},
		[]string{"namespace", "event"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxhub_messages_sent_total",
			Help: "Total messages delivered through the pipeline",
		},
		[]string{"kind"}, // "direct" or "channel"
	)

	CallsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxhub_calls_initiated_total",
			Help: "Total call attempts by outcome",
		},
		[]string{"outcome"}, // "ringing", "busy", "offline"
	)

	ChannelJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxhub_channel_joins_total",
			Help: "Total voice channel joins",
		},
	)

	NotificationsPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxhub_notifications_pushed_total",
			Help: "Total push notifications dispatched",
		},
	)

	// Infrastructure metrics
	StateLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voxhub_state_latency_seconds",
			Help:    "Keyed state store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voxhub_store_latency_seconds",
			Help:    "Data store query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
