package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "outofoffice"

var (
	once sync.Once

	entriesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_created_total",
			Help:      "Out of office create requests by result.",
		},
		[]string{"result"},
	)

	entriesDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_deleted_total",
			Help:      "Out of office delete requests by result.",
		},
		[]string{"result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Booking redirect notifications by status.",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal is labelled by route pattern, never the raw path.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distributions.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)
)

// Register registers all collectors with the default registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			entriesCreated,
			entriesDeleted,
			notifications,
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
		)
	})
}

// result is "ok" for a nil error kind, otherwise the kind itself.
func result(kind string) string {
	if kind == "" {
		return "ok"
	}
	return kind
}

func IncEntryCreated(errorKind string) {
	entriesCreated.WithLabelValues(result(errorKind)).Inc()
}

func IncEntryDeleted(errorKind string) {
	entriesDeleted.WithLabelValues(result(errorKind)).Inc()
}

// IncNotification records a notification attempt: "sent", "failed" or "skipped".
func IncNotification(status string) {
	notifications.WithLabelValues(status).Inc()
}
