package transaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "inceptiontx"
	subsystem = "transaction"

	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commits_total",
			Help:      "Total number of top level commits by result",
		},
		[]string{"result"},
	)

	rollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rollbacks_total",
			Help:      "Total number of effective rollbacks",
		},
	)

	hookPasses = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hook_passes",
			Help:      "Hook passes needed to reach a fixed point on commit",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 100},
		},
	)

	commitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commit_duration_seconds",
			Help:      "Duration of the commit protocol in seconds",
		},
	)

	indexEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "index_entries_total",
			Help:      "Index change entries before and after interpretation",
		},
		[]string{"stage"},
	)
)
