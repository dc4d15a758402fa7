// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreEventsApplied counts merges that changed the cache.
	StoreEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_store_events_applied_total",
			Help: "Total number of change events that modified the cache",
		},
		[]string{"table", "event_type", "source"},
	)

	// StoreEventsAbsorbed counts merges that were no-ops (duplicates, unknown ids).
	StoreEventsAbsorbed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_store_events_absorbed_total",
			Help: "Total number of change events absorbed without a visible change",
		},
		[]string{"table", "event_type", "source"},
	)

	StoreEventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_store_events_rejected_total",
			Help: "Total number of realtime payloads dropped as malformed",
		},
		[]string{"channel"},
	)

	MutationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_mutations_completed_total",
			Help: "Total number of remote writes that succeeded",
		},
		[]string{"operation"},
	)

	MutationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_mutations_failed_total",
			Help: "Total number of remote writes that failed",
		},
		[]string{"operation", "error_code"},
	)

	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "inventory_mutation_duration_seconds",
			Help: "Duration of remote writes in seconds",
		},
		[]string{"operation"},
	)

	ImageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_image_operations_total",
			Help: "Image store operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	CachedEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_cached_entities",
			Help: "Number of entities currently held in the cache",
		},
		[]string{"table"},
	)

	RealtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inventory_realtime_connected",
			Help: "1 while the realtime listener is connected",
		},
	)
)
