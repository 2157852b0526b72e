// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_archive_storage_failures_total",
			Help: "Store failures absorbed by degraded read paths",
		},
		[]string{"op"},
	)

	NameResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_archive_name_resolutions_total",
			Help: "Display name resolutions by the source that answered",
		},
		[]string{"source"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whatsapp_archive_query_duration_seconds",
			Help:    "Archive query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"op"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_archive_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveSince records the time elapsed since start for op.
func ObserveSince(op string, start time.Time) {
	QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
