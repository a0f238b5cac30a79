package rollup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "nftrollup"
	subsystem        = "rollup"
)

var (
	actionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "actions_applied_total",
			Help:      "Actions applied while building batches",
		},
		[]string{"outcome"},
	)

	batchesBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "batches_built_total",
			Help:      "Total number of batches built",
		},
	)

	batchFill = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "batch_real_actions",
			Help:      "Non-padding actions per built batch",
			Buckets:   prometheus.LinearBuckets(0, 1, 16),
		},
	)
)
