package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oraclewatch_core_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oraclewatch_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Alert pipeline metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oraclewatch_core_alerts_created_total",
			Help: "Alerts created after passing dedup and suppression",
		},
		[]string{"source", "severity"},
	)

	AlertsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oraclewatch_core_alerts_deduplicated_total",
			Help: "Candidates collapsed into an existing occurrence",
		},
		[]string{"source"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oraclewatch_core_alerts_suppressed_total",
			Help: "Candidates dropped by a suppression rule",
		},
		[]string{"rule_id"},
	)

	EscalationsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oraclewatch_core_escalations_fired_total",
			Help: "Escalation levels fired by the scheduler",
		},
		[]string{"policy_id", "level"},
	)

	NotificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oraclewatch_core_notification_attempts_total",
			Help: "Notification delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// WebSocket fan-out metrics
	ActiveWebSocketConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oraclewatch_core_websocket_connections_active",
			Help: "Currently connected WebSocket clients per stream",
		},
		[]string{"stream"},
	)

	// Valkey cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oraclewatch_core_cache_requests_total",
			Help: "Total number of cache requests",
		},
		[]string{"operation", "result"}, // get/set/delete, hit/miss/error
	)
)
