// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the coordinator.
type Metrics struct {
	// Lifecycle metrics
	StrategiesRegistered prometheus.Counter
	TransitionsTotal     *prometheus.CounterVec // labels: from, to, outcome
	CASConflicts         prometheus.Counter
	SlotConflicts        prometheus.Counter
	RecordsAppended      *prometheus.CounterVec // labels: kind

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec // labels: op, collection
	StoreOpErrors   *prometheus.CounterVec   // labels: op, collection

	// Health metrics
	BootstrapDuration prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_lifecycle"
	}

	return &Metrics{
		StrategiesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategies_registered_total",
			Help:      "Number of strategies registered.",
		}),
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Stage transition attempts by edge and outcome.",
		}, []string{"from", "to", "outcome"}),
		CASConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_conflicts_total",
			Help:      "Compare-and-swap writes lost to a concurrent writer.",
		}),
		SlotConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_conflicts_total",
			Help:      "Production slot claims rejected because the slot was held.",
		}),
		RecordsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Appended records by kind (backtest, training, performance).",
		}, []string{"kind"}),
		StoreOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_duration_seconds",
			Help:      "Document store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "collection"}),
		StoreOpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_op_errors_total",
			Help:      "Document store operations that returned an error.",
		}, []string{"op", "collection"}),
		BootstrapDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bootstrap_duration_seconds",
			Help:      "Time spent verifying storage collections at startup.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
