package metrics

import "github.com/prometheus/client_golang/prometheus"

// DependencyMetrics covers outbound collaborators shared by every binary:
// the query-embedding cache and the circuit breakers.
type DependencyMetrics struct {
	cacheTotal   *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func newDependencyMetrics(service string, registry *prometheus.Registry) *DependencyMetrics {
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "legal",
			Subsystem:   "embedding",
			Name:        "cache_requests_total",
			Help:        "Embedding cache lookups by result.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"result"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   "legal",
			Subsystem:   "resilience",
			Name:        "breaker_state",
			Help:        "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)
	registry.MustRegister(cacheTotal, breakerState)
	return &DependencyMetrics{cacheTotal: cacheTotal, breakerState: breakerState}
}

// EmbeddingCacheCounter is handed to the cached embedder.
func (m *DependencyMetrics) EmbeddingCacheCounter() *prometheus.CounterVec {
	return m.cacheTotal
}

// BreakerStateChanged matches resilience.Config.OnStateChange.
func (m *DependencyMetrics) BreakerStateChanged(operation, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.breakerState.WithLabelValues(operation).Set(v)
}
