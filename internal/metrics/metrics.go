package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamDuration times calls to the clubs API.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clubadmin",
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of clubs API requests by operation and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubadmin",
		Name:      "cache_hits_total",
		Help:      "Read cache hits by resource kind.",
	}, []string{"kind"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubadmin",
		Name:      "cache_misses_total",
		Help:      "Read cache misses by resource kind.",
	}, []string{"kind"})

	// Invalidations counts keys dropped per resource kind.
	Invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubadmin",
		Name:      "cache_invalidations_total",
		Help:      "Cache invalidations by resource kind.",
	}, []string{"kind"})

	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubadmin",
		Name:      "cache_refreshes_total",
		Help:      "Background cache refreshes by outcome.",
	}, []string{"outcome"})

	WorkerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubadmin",
		Name:      "worker_runs_total",
		Help:      "Worker jobs by job name and outcome.",
	}, []string{"job", "outcome"})
)

// Outcome maps an error to a metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
