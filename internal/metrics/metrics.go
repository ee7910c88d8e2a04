package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FanoutCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascout_fanout_calls_total",
			Help: "Total adapter calls executed by the fan-out executor",
		},
		[]string{"source", "media_type", "status"},
	)

	FanoutCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediascout_fanout_call_duration_seconds",
			Help:    "Duration of individual adapter calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	RecordsPersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascout_records_persisted_total",
			Help: "Canonical records successfully written to storage",
		},
		[]string{"media_type"},
	)

	JobsFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascout_jobs_finalized_total",
			Help: "Research jobs by terminal status",
		},
		[]string{"status"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascout_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"result"},
	)

	FilterRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediascout_filter_rejections_total",
			Help: "Candidates rejected by the relevance filter",
		},
		[]string{"stage"},
	)
)
