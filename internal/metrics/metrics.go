// Package metrics defines the Prometheus collectors exported by the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks outbox depth by entry state.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fieldsync_queue_depth",
		Help: "Number of sync queue entries by state.",
	}, []string{"state"})

	// OperationsDelivered counts operations confirmed by the remote side.
	OperationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_operations_delivered_total",
		Help: "Total operations committed remotely, by kind.",
	}, []string{"kind"})

	// OperationRetries counts delivery failures that re-entered the backoff
	// cycle.
	OperationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_operation_retries_total",
		Help: "Total delivery failures scheduled for retry.",
	})

	// OperationsDeadLettered counts entries that exhausted their retry budget.
	OperationsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_operations_dead_lettered_total",
		Help: "Total entries parked after exhausting the retry budget.",
	})

	// MediaUploaded counts media payloads uploaded to blob storage.
	MediaUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_media_uploaded_total",
		Help: "Total media payloads uploaded.",
	})

	// MediaBytesStored observes compressed payload sizes.
	MediaBytesStored = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fieldsync_media_bytes_stored",
		Help:    "Compressed media payload size in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// NetworkTier exposes the current classified tier as its rank (0 best).
	NetworkTier = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldsync_network_tier_rank",
		Help: "Current network quality tier rank (0 excellent .. 3 critical).",
	})

	// OptimizationLevelChanges counts adaptation level transitions.
	OptimizationLevelChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_optimization_level_changes_total",
		Help: "Total adaptation strategy level transitions.",
	})
)
