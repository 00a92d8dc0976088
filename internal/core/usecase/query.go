package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const (
	DefaultTopKRetrieve = 12
	DefaultTopKReturn   = 5
	DefaultQueryTimeout = 120 * time.Second

	auditTimeout = 5 * time.Second
)

type QueryConfig struct {
	TopKRetrieve int
	TopKReturn   int
	Timeout      time.Duration
}

// QueryUseCase runs route, retrieve and rerank for one question.
type QueryUseCase struct {
	router    *QueryRouter
	retriever *Retriever
	reranker  *FusionReranker
	audit     ports.AuditLog
	observer  ports.QueryObserver
	cfg       QueryConfig
}

func NewQueryUseCase(
	router *QueryRouter,
	retriever *Retriever,
	reranker *FusionReranker,
	cfg QueryConfig,
) *QueryUseCase {
	if cfg.TopKRetrieve <= 0 {
		cfg.TopKRetrieve = DefaultTopKRetrieve
	}
	if cfg.TopKReturn <= 0 {
		cfg.TopKReturn = DefaultTopKReturn
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultQueryTimeout
	}
	return &QueryUseCase{
		router:    router,
		retriever: retriever,
		reranker:  reranker,
		cfg:       cfg,
	}
}

// WithAudit attaches an audit log. Audit failures never fail a query.
func (uc *QueryUseCase) WithAudit(audit ports.AuditLog) *QueryUseCase {
	uc.audit = audit
	return uc
}

func (uc *QueryUseCase) WithObserver(observer ports.QueryObserver) *QueryUseCase {
	uc.observer = observer
	return uc
}

func (uc *QueryUseCase) AnswerQuery(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	result, err := uc.answer(ctx, req)
	if uc.observer != nil {
		uc.observer.ObserveQuery(result, err)
	}
	return result, err
}

func (uc *QueryUseCase) answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	started := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", errors.New("query is required"))
	}
	if uc.router == nil || uc.retriever == nil || uc.reranker == nil {
		return nil, domain.WrapError(domain.ErrCollaboratorUnavailable, "answer query", errors.New("pipeline is not fully configured"))
	}

	topReturn := req.TopKReturn
	if topReturn <= 0 {
		topReturn = uc.cfg.TopKReturn
	}
	topRetrieve := req.TopKRetrieve
	if topRetrieve <= 0 {
		topRetrieve = uc.cfg.TopKRetrieve
	}
	topRetrieve = max(topRetrieve, topReturn)

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	var timings domain.StageTimings

	stageStart := time.Now()
	scope := uc.router.Route(ctx, query, req.CategoryOverride)
	timings.RouteMS = domain.Millis(time.Since(stageStart))

	candidates, retrieval, err := uc.retriever.Retrieve(ctx, query, scope, topRetrieve)
	timings.EmbedMS = domain.Millis(retrieval.Embed)
	timings.SearchMS = domain.Millis(retrieval.Search)
	if err != nil {
		return nil, err
	}

	stageStart = time.Now()
	ranked, degraded := uc.reranker.Rerank(ctx, query, candidates)
	timings.RerankMS = domain.Millis(time.Since(stageStart))

	if len(ranked) > topReturn {
		ranked = ranked[:topReturn]
	}
	timings.TotalMS = domain.Millis(time.Since(started))

	result := &domain.QueryResult{
		Query:          query,
		Candidates:     ranked,
		Timings:        timings,
		Scope:          scope,
		RerankDegraded: degraded,
	}

	slog.InfoContext(ctx, "query_answered",
		"scope", scope.Mode,
		"category", scope.Category,
		"results", len(ranked),
		"rerank_degraded", degraded,
		"total_ms", timings.TotalMS,
	)
	uc.recordAudit(ctx, result)
	return result, nil
}

func (uc *QueryUseCase) recordAudit(ctx context.Context, result *domain.QueryResult) {
	if uc.audit == nil {
		return
	}
	requestID := domain.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	rec := domain.AuditRecord{
		RequestID:         requestID,
		Query:             result.Query,
		Scope:             result.Scope.Mode,
		Category:          result.Scope.Category,
		PredictedCategory: result.Scope.PredictedCategory,
		Confidence:        result.Scope.Confidence,
		ResultCount:       len(result.Candidates),
		RerankDegraded:    result.RerankDegraded,
		Timings:           result.Timings,
		CreatedAt:         time.Now().UTC(),
	}
	if len(result.Candidates) > 0 {
		top := result.Candidates[0]
		rec.TopAct = top.Act
		rec.TopSection = top.Section
		rec.TopScore = top.FusedScore
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := uc.audit.RecordQuery(auditCtx, rec); err != nil {
		slog.Warn("query_audit_failed", "request_id", requestID, "error", err)
	}
}
