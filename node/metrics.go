package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "nftrollup"
	subsystem        = "pipeline"
)

var (
	pipelineRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "commits_total",
			Help:      "Merged proofs committed to the anchor",
		},
	)

	batchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "batch_prove_failures_total",
			Help:      "Batches whose proof failed or timed out",
		},
	)

	batchProveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "batch_prove_duration_seconds",
			Help:      "Wall time of one batch proof including queueing",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
