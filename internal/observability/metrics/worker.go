package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

type WorkerMetrics struct {
	*DependencyMetrics

	registry *prometheus.Registry

	indexTotal    *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec
	indexInFlight prometheus.Gauge
	indexedChunks prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "act_index_total",
			Help:      "Total indexed acts by status.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "act_index_duration_seconds",
			Help:      "Act indexing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "act_index_in_flight",
			Help:      "Number of in-flight act index jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	indexedChunks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "indexed_chunks_total",
			Help:      "Chunks upserted into the vector store.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(indexTotal, indexDuration, indexInFlight, indexedChunks)

	return &WorkerMetrics{
		DependencyMetrics: newDependencyMetrics(service, registry),
		registry:          registry,
		indexTotal:        indexTotal,
		indexDuration:     indexDuration,
		indexInFlight:     indexInFlight,
		indexedChunks:     indexedChunks,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartAct() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishAct(service string, duration time.Duration, err error) {
	m.indexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.indexTotal.WithLabelValues(service, status).Inc()
	m.indexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// ObserveIndex implements ports.IndexObserver.
func (m *WorkerMetrics) ObserveIndex(stats domain.IndexStats, err error) {
	if err == nil {
		m.indexedChunks.Add(float64(stats.Chunks))
	}
}
