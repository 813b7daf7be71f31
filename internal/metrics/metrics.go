// Package metrics declares the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthRejections counts requests denied by the auth gateway.
	// Labels:
	//   - reason: "missing", "invalid", "unknown_user", "blocked", "forbidden", "identity_mismatch"
	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctfarena_auth_rejections_total",
			Help: "Total number of requests rejected by authentication or authorization",
		},
		[]string{"reason"},
	)

	// WSConnections is the number of registered realtime connections on this instance.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ctfarena_ws_connections",
		Help: "Number of live realtime connections",
	})

	// NotificationsCreated counts persisted notifications.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctfarena_notifications_created_total",
			Help: "Total number of persisted notifications",
		},
		[]string{"type"},
	)

	// NotificationsPushed counts realtime delivery attempts.
	// Labels:
	//   - result: "delivered", "offline", "relayed"
	NotificationsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctfarena_notifications_pushed_total",
			Help: "Total number of realtime notification delivery attempts",
		},
		[]string{"result"},
	)

	// BlocklistSize is the number of ids in the block-list cache.
	BlocklistSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ctfarena_blocklist_size",
		Help: "Number of blocked users held in the in-memory cache",
	})

	// HTTPRequests counts served HTTP requests by route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctfarena_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// HTTPDuration measures HTTP handler latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctfarena_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"route"},
	)
)

// RecordAuthRejection increments the rejection counter for reason.
func RecordAuthRejection(reason string) {
	AuthRejections.WithLabelValues(reason).Inc()
}

// RecordNotificationCreated increments the created counter by n for typ.
func RecordNotificationCreated(typ string, n int) {
	NotificationsCreated.WithLabelValues(typ).Add(float64(n))
}

// RecordPush increments the push counter for result.
func RecordPush(result string) {
	NotificationsPushed.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
