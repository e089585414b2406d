// Package metrics exposes Prometheus metrics for queries and cache maintenance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "faqcache"

// LatencyBuckets covers embedding plus scoring latency, in seconds.
var LatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// RebuildBuckets covers rebuilds of a few entries up to full reconstructions.
var RebuildBuckets = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600}

var (
	// QueriesTotal counts queries by outcome (hit, miss, error) and miss reason.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of cache queries",
		},
		[]string{"outcome", "reason"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Cache query latency in seconds",
			Buckets:   LatencyBuckets,
		},
	)

	// MaintenanceTotal counts save, delete, feedback, reconstruct, reset and clean operations.
	MaintenanceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_total",
			Help:      "Total number of maintenance operations",
		},
		[]string{"operation", "outcome"},
	)

	RebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of collection rebuilds in seconds",
			Buckets:   RebuildBuckets,
		},
		[]string{"operation"},
	)

	StoreRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_repairs_total",
			Help:      "Total number of store repairs performed on open",
		},
		[]string{"kind"},
	)

	// CollectionEntries is the entry count of a collection after the last mutation.
	CollectionEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collection_entries",
			Help:      "Number of entries in a collection",
		},
		[]string{"collection"},
	)
)

// RecordQuery records a query outcome and its latency.
func RecordQuery(outcome, reason string, seconds float64) {
	QueriesTotal.WithLabelValues(outcome, reason).Inc()
	QueryDuration.Observe(seconds)
}

// RecordMaintenance counts one maintenance operation.
func RecordMaintenance(operation, outcome string) {
	MaintenanceTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRebuild records how long a rebuild took.
func RecordRebuild(operation string, seconds float64) {
	RebuildDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordRepair counts a store repair of the given kind. Usable as a storage repair hook.
func RecordRepair(kind string) {
	StoreRepairsTotal.WithLabelValues(kind).Inc()
}

// SetEntries sets the entry gauge for collection.
func SetEntries(collection string, n int) {
	CollectionEntries.WithLabelValues(collection).Set(float64(n))
}
