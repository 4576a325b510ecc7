package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trafficshed"

var (
	// labels: kind (route, table), status (ok, error)
	oracleQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "queries_total",
		Help:      "Routing oracle queries by kind and status",
	}, []string{"kind", "status"})

	oracleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "latency_seconds",
		Help:      "Routing oracle request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind"})

	// labels: layer (lru, badger), result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Oracle response cache lookups",
	}, []string{"layer", "result"})

	// labels: stage (local, search, fallback, promote)
	resolvedEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "resolved_edges_total",
		Help:      "Edges that received a next hop, by resolution stage",
	}, []string{"stage"})

	unbridgeableGaps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "unbridgeable_gaps_total",
		Help:      "Oracle proposals dropped because the route never reached a known edge",
	})

	propagationIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "propagation",
		Name:      "iterations",
		Help:      "Propagation iterations until the fixed point",
		Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
	})

	// labels: status (ok, error)
	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Trafficshed runs by status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full trafficshed run",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveOracleQuery(kind string, start time.Time, err error) {
	oracleQueries.WithLabelValues(kind, statusLabel(err)).Inc()
	oracleLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func CacheHit(layer string) {
	cacheLookups.WithLabelValues(layer, "hit").Inc()
}

func CacheMiss(layer string) {
	cacheLookups.WithLabelValues(layer, "miss").Inc()
}

func AddResolved(stage string, n int) {
	resolvedEdges.WithLabelValues(stage).Add(float64(n))
}

func IncUnbridgeableGap() {
	unbridgeableGaps.Inc()
}

func ObservePropagation(iterations int) {
	propagationIterations.Observe(float64(iterations))
}

func ObserveRun(start time.Time, err error) {
	runs.WithLabelValues(statusLabel(err)).Inc()
	runDuration.Observe(time.Since(start).Seconds())
}
