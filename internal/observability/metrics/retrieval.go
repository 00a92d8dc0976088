package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// RetrievalMetrics implements ports.QueryObserver.
type RetrievalMetrics struct {
	stageDuration   *prometheus.HistogramVec
	scopeTotal      *prometheus.CounterVec
	rerankDegraded  prometheus.Counter
	classifierConf  prometheus.Histogram
	resultCount     prometheus.Histogram
	queryErrorTotal *prometheus.CounterVec
}

func newRetrievalMetrics(service string, registry *prometheus.Registry) *RetrievalMetrics {
	constLabels := prometheus.Labels{"service": service}

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "legal",
			Subsystem:   "retrieval",
			Name:        "stage_duration_seconds",
			Help:        "Query pipeline stage latency in seconds.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)
	scopeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "legal",
			Subsystem:   "retrieval",
			Name:        "scope_total",
			Help:        "Answered queries by routing scope.",
			ConstLabels: constLabels,
		},
		[]string{"mode", "classifier_degraded"},
	)
	rerankDegraded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "legal",
			Subsystem:   "retrieval",
			Name:        "rerank_degraded_total",
			Help:        "Queries answered in similarity order because the cross-encoder was unavailable.",
			ConstLabels: constLabels,
		},
	)
	classifierConf := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "legal",
			Subsystem:   "retrieval",
			Name:        "classifier_confidence",
			Help:        "Distribution of classifier confidence for classified queries.",
			Buckets:     []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			ConstLabels: constLabels,
		},
	)
	resultCount := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "legal",
			Subsystem:   "retrieval",
			Name:        "results",
			Help:        "Passages returned per answered query.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: constLabels,
		},
	)
	queryErrorTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "legal",
			Subsystem:   "retrieval",
			Name:        "query_errors_total",
			Help:        "Failed queries by error kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)

	registry.MustRegister(stageDuration, scopeTotal, rerankDegraded, classifierConf, resultCount, queryErrorTotal)

	return &RetrievalMetrics{
		stageDuration:   stageDuration,
		scopeTotal:      scopeTotal,
		rerankDegraded:  rerankDegraded,
		classifierConf:  classifierConf,
		resultCount:     resultCount,
		queryErrorTotal: queryErrorTotal,
	}
}

func (m *RetrievalMetrics) ObserveQuery(result *domain.QueryResult, err error) {
	if err != nil {
		m.queryErrorTotal.WithLabelValues(errorKind(err)).Inc()
		return
	}
	if result == nil {
		return
	}

	t := result.Timings
	m.stageDuration.WithLabelValues("route").Observe(t.RouteMS / 1000)
	m.stageDuration.WithLabelValues("embed").Observe(t.EmbedMS / 1000)
	m.stageDuration.WithLabelValues("search").Observe(t.SearchMS / 1000)
	m.stageDuration.WithLabelValues("rerank").Observe(t.RerankMS / 1000)
	m.stageDuration.WithLabelValues("total").Observe(t.TotalMS / 1000)

	degraded := "false"
	if result.Scope.ClassifierDegraded {
		degraded = "true"
	}
	m.scopeTotal.WithLabelValues(string(result.Scope.Mode), degraded).Inc()
	if result.Scope.Classified {
		m.classifierConf.Observe(result.Scope.Confidence)
	}
	if result.RerankDegraded {
		m.rerankDegraded.Inc()
	}
	m.resultCount.Observe(float64(len(result.Candidates)))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		return "collaborator_unavailable"
	case errors.Is(err, domain.ErrRetrievalFailure):
		return "retrieval_failure"
	case errors.Is(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}
