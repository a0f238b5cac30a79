package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "nftrollup"
	subsystem        = "indexer"
)

var (
	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "sync_duration_seconds",
			Help:      "Time taken by one indexer sync",
			Buckets:   prometheus.DefBuckets,
		},
	)

	actionsReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "actions_replayed_total",
			Help:      "Actions replayed into the mirror",
		},
	)

	divergences = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "divergences_total",
			Help:      "Consistency checks that found the mirror off the committed state",
		},
	)

	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "asset_cache_hits_total",
			Help:      "Asset lookups served from the cache",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "asset_cache_misses_total",
			Help:      "Asset lookups that went to the store",
		},
	)
)
