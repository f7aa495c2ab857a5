package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgate_events_total",
			Help: "Total number of events received",
		},
		[]string{"endpoint", "status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowgate_event_bytes_total",
			Help: "Total bytes of event payload data received",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowgate_batch_size",
			Help:    "Number of events per batch request",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	// Validation cache metrics
	ValidationCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgate_validation_cache_hits_total",
			Help: "Total validation cache hits per tier",
		},
		[]string{"tier"},
	)

	ValidationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowgate_validation_cache_misses_total",
			Help: "Total validation lookups resolved from the store",
		},
	)

	ValidationNotFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowgate_validation_not_found_total",
			Help: "Total validation lookups that resolved to no resource",
		},
	)

	// Publishing metrics
	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowgate_publish_duration_seconds",
			Help:    "Duration of message bus publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowgate_publish_errors_total",
			Help: "Total number of message bus publish failures",
		},
	)

	// Lifecycle projection metrics
	LifecycleEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgate_lifecycle_events_total",
			Help: "Total lifecycle events projected into the resource store",
		},
		[]string{"resource", "action"},
	)
)
