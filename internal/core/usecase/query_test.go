package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

func newQueryFixture(classifier *classifierFake, store *vectorStoreFake, encoder *crossEncoderFake) *QueryUseCase {
	router := NewQueryRouter(classifier, nil, 0.6)
	retriever := NewRetriever(&embedderFake{}, store, RetrieverConfig{QueryPrefix: DefaultQueryPrefix})
	reranker := NewFusionReranker(nil, RerankConfig{Alpha: DefaultRerankAlpha})
	if encoder != nil {
		reranker = NewFusionReranker(encoder, RerankConfig{Alpha: DefaultRerankAlpha})
	}
	return NewQueryUseCase(router, retriever, reranker, QueryConfig{})
}

func TestAnswerQueryScopedRetrievalWithEmptyResult(t *testing.T) {
	classifier := &classifierFake{
		result: domain.Classification{Label: "Employment Act", Confidence: 0.82},
		delay:  2 * time.Millisecond,
	}
	store := &vectorStoreFake{}
	uc := newQueryFixture(classifier, store, nil)

	result, err := uc.AnswerQuery(context.Background(), domain.QueryRequest{Query: "Can my employer fire me for being pregnant?"})
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if store.filter.Act != "Employment Act" {
		t.Fatalf("expected scoped retrieval, got filter %+v", store.filter)
	}
	if result.Scope.Mode != domain.ScopeNarrow {
		t.Fatalf("expected narrow scope, got %s", result.Scope.Mode)
	}
	if result.Candidates == nil || len(result.Candidates) != 0 {
		t.Fatalf("expected empty candidate list, got %#v", result.Candidates)
	}
	if result.Timings.TotalMS <= 0 || result.Timings.TotalMS < result.Timings.RouteMS {
		t.Fatalf("expected total_ms populated, got %+v", result.Timings)
	}
}

func TestAnswerQueryDefaultsAndBreadth(t *testing.T) {
	store := &vectorStoreFake{hits: hitsOf("1", "2", "3", "4", "5", "6", "7")}
	uc := newQueryFixture(&classifierFake{}, store, nil)

	result, err := uc.AnswerQuery(context.Background(), domain.QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if store.lastTopK != DefaultTopKRetrieve {
		t.Fatalf("expected retrieve breadth %d, got %d", DefaultTopKRetrieve, store.lastTopK)
	}
	if len(result.Candidates) != DefaultTopKReturn {
		t.Fatalf("expected %d candidates, got %d", DefaultTopKReturn, len(result.Candidates))
	}

	if _, err := uc.AnswerQuery(context.Background(), domain.QueryRequest{Query: "q", TopKRetrieve: 3, TopKReturn: 6}); err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if store.lastTopK != 6 {
		t.Fatalf("expected retrieve breadth raised to 6, got %d", store.lastTopK)
	}
}

func TestAnswerQueryCrossEncoderAlwaysFailing(t *testing.T) {
	encoder := &crossEncoderFake{scores: func([]domain.ScorePair) ([]float64, error) {
		return nil, errors.New("connection refused")
	}}
	store := &vectorStoreFake{hits: hitsOf("1", "2", "3")}
	uc := newQueryFixture(&classifierFake{}, store, encoder)

	result, err := uc.AnswerQuery(context.Background(), domain.QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if !result.RerankDegraded {
		t.Fatalf("expected degraded rerank")
	}
	for i, c := range result.Candidates {
		if c.ID != store.hits.IDs[i] || c.RerankScore != c.SimilarityScore {
			t.Fatalf("expected similarity order, got %+v", c)
		}
	}
}

func TestAnswerQueryRejectsEmptyQuery(t *testing.T) {
	observer := &observerFake{}
	uc := newQueryFixture(&classifierFake{}, &vectorStoreFake{}, nil).WithObserver(observer)
	_, err := uc.AnswerQuery(context.Background(), domain.QueryRequest{Query: "   "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(observer.errs) != 1 || observer.errs[0] == nil {
		t.Fatalf("expected observer to see the failure")
	}
}

func TestAnswerQueryVectorStoreFailure(t *testing.T) {
	uc := newQueryFixture(&classifierFake{}, &vectorStoreFake{queryErr: errors.New("boom")}, nil)
	_, err := uc.AnswerQuery(context.Background(), domain.QueryRequest{Query: "q"})
	if !errors.Is(err, domain.ErrRetrievalFailure) {
		t.Fatalf("expected retrieval failure, got %v", err)
	}
}

func TestAnswerQueryMisconfiguredPipeline(t *testing.T) {
	uc := NewQueryUseCase(nil, nil, nil, QueryConfig{})
	_, err := uc.AnswerQuery(context.Background(), domain.QueryRequest{Query: "q"})
	if !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Fatalf("expected collaborator unavailable, got %v", err)
	}
}

func TestAnswerQueryAuditFailureDoesNotFailRequest(t *testing.T) {
	audit := &auditFake{err: errors.New("postgres down")}
	store := &vectorStoreFake{hits: hitsOf("1")}
	uc := newQueryFixture(&classifierFake{}, store, nil).WithAudit(audit)

	ctx := domain.WithRequestID(context.Background(), "req-1")
	result, err := uc.AnswerQuery(ctx, domain.QueryRequest{Query: "q"})
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.records))
	}
	rec := audit.records[0]
	if rec.RequestID != "req-1" || rec.TopSection != "1" || rec.ResultCount != len(result.Candidates) {
		t.Fatalf("unexpected audit record %+v", rec)
	}
}

func TestAnswerQueryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	embedder := &embedderFake{err: context.Canceled}
	uc := NewQueryUseCase(
		NewQueryRouter(nil, nil, 0.6),
		NewRetriever(embedder, &vectorStoreFake{}, RetrieverConfig{}),
		NewFusionReranker(nil, RerankConfig{}),
		QueryConfig{},
	)
	_, err := uc.AnswerQuery(ctx, domain.QueryRequest{Query: "q"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to surface, got %v", err)
	}
}
