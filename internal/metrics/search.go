package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	// FiltersUnresolvedTotal counts client filter values that failed to
	// resolve to a known entity and were silently dropped. The drop is
	// deliberate compatibility behavior; this counter makes it visible.
	FiltersUnresolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "filters_unresolved_total",
			Help:      "Total client filter values dropped as unresolvable",
		},
		[]string{"param"},
	)

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "response_cache_total",
			Help:      "Response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EngineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "engine_errors_total",
			Help:      "Total index-engine query failures",
		},
		[]string{"op"},
	)

	EngineQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "strata",
			Name:      "engine_query_duration_seconds",
			Help:      "Index-engine round-trip duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"op"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(FiltersUnresolvedTotal)
	prometheus.MustRegister(ResponseCacheTotal)
	prometheus.MustRegister(EngineErrorsTotal)
	prometheus.MustRegister(EngineQueryDuration)
	searchMetricsRegistered = true
}
