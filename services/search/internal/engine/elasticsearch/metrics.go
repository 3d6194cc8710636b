package elasticsearch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BackendRequests counts search backend round trips by operation and status.
var BackendRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_backend_requests_total",
		Help: "Total number of search backend requests",
	},
	[]string{"operation", "status"},
)

// BackendDuration tracks search backend round-trip latency.
var BackendDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "search_backend_request_duration_seconds",
		Help:    "Duration of search backend requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)
