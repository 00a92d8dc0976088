package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

func TestObserveQueryRecordsScopeAndDegradation(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveQuery(&domain.QueryResult{
		Scope:          domain.Scope{Mode: domain.ScopeNarrow, Classified: true, Confidence: 0.82},
		RerankDegraded: true,
		Candidates:     make([]domain.Candidate, 3),
		Timings:        domain.StageTimings{TotalMS: 40},
	}, nil)
	m.ObserveQuery(nil, domain.WrapError(domain.ErrRetrievalFailure, "query", errors.New("down")))

	if got := testutil.ToFloat64(m.scopeTotal.WithLabelValues("narrow", "false")); got != 1 {
		t.Fatalf("expected one narrow query, got %v", got)
	}
	if got := testutil.ToFloat64(m.rerankDegraded); got != 1 {
		t.Fatalf("expected one degraded rerank, got %v", got)
	}
	if got := testutil.ToFloat64(m.queryErrorTotal.WithLabelValues("retrieval_failure")); got != 1 {
		t.Fatalf("expected one retrieval failure, got %v", got)
	}
}

func TestMiddlewareCountsRequestsAndExposesHandler(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return m.Middleware("api", next)
	})
	router.Post("/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/search", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", "POST", "/v1/search", "418")); got != 1 {
		t.Fatalf("expected request counted, got %v", got)
	}

	m.BreakerStateChanged("qdrant.query", "open")
	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), `legal_resilience_breaker_state{operation="qdrant.query",service="api"} 2`) {
		t.Fatalf("expected breaker gauge in exposition, got:\n%s", res.Body.String())
	}
}

func TestWorkerMetricsTrackIndexRuns(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartAct()
	m.ObserveIndex(domain.IndexStats{Act: "Employment Act", Chunks: 42}, nil)
	m.FinishAct("worker", time.Second, nil)
	m.ObserveIndex(domain.IndexStats{Chunks: 7}, errors.New("failed"))

	if got := testutil.ToFloat64(m.indexedChunks); got != 42 {
		t.Fatalf("expected 42 indexed chunks, got %v", got)
	}
	if got := testutil.ToFloat64(m.indexTotal.WithLabelValues("worker", "success")); got != 1 {
		t.Fatalf("expected one successful act, got %v", got)
	}
	if got := testutil.ToFloat64(m.indexInFlight); got != 0 {
		t.Fatalf("expected no in-flight acts, got %v", got)
	}
}
