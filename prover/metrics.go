package prover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "nftrollup"
	subsystem        = "prover"
)

var (
	proofsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "proofs_total",
			Help:      "Proofs produced, by kind",
		},
		[]string{"kind"}, // batch, merge
	)

	proveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "prove_duration_seconds",
			Help:      "Time taken to prove one batch",
			Buckets:   prometheus.DefBuckets,
		},
	)

	mergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "merge_duration_seconds",
			Help:      "Time taken to merge two proofs",
			Buckets:   prometheus.DefBuckets,
		},
	)

	mergeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "merge_failures_total",
			Help:      "Merges refused or failed",
		},
	)
)
