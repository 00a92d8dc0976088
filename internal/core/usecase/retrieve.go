package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const DefaultQueryPrefix = "query: "

type RetrieverConfig struct {
	QueryPrefix string
	Normalize   bool
	Metric      domain.DistanceMetric
}

// Retriever embeds a query and pulls the nearest chunks from the vector store.
type Retriever struct {
	embedder ports.Embedder
	store    ports.VectorStore
	cfg      RetrieverConfig
}

func NewRetriever(embedder ports.Embedder, store ports.VectorStore, cfg RetrieverConfig) *Retriever {
	if cfg.Metric == "" {
		cfg.Metric = domain.DistanceCosine
	}
	return &Retriever{embedder: embedder, store: store, cfg: cfg}
}

// RetrievalTimings reports the two stages Retrieve runs.
type RetrievalTimings struct {
	Embed  time.Duration
	Search time.Duration
}

// Retrieve returns up to topK candidates ranked 1..N by similarity. An empty
// store result is an empty list, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, scope domain.Scope, topK int) ([]domain.Candidate, RetrievalTimings, error) {
	var timings RetrievalTimings
	if strings.TrimSpace(query) == "" {
		return nil, timings, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("empty query"))
	}
	if topK <= 0 {
		return nil, timings, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("top_k must be positive, got %d", topK))
	}

	start := time.Now()
	vector, err := r.embedQuery(ctx, query)
	timings.Embed = time.Since(start)
	if err != nil {
		return nil, timings, err
	}

	start = time.Now()
	hits, err := r.store.Query(ctx, vector, topK, scope.Filter())
	timings.Search = time.Since(start)
	if err != nil {
		return nil, timings, domain.WrapError(domain.ErrRetrievalFailure, "query vector store", err)
	}

	return r.candidates(hits), timings, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := r.embedder.Embed(ctx, []string{r.cfg.QueryPrefix + query}, domain.RoleQuery)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollaboratorUnavailable, "embed query", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, domain.WrapError(
			domain.ErrCollaboratorUnavailable,
			"embed query",
			fmt.Errorf("expected one vector, got %d", len(vectors)),
		)
	}
	if r.cfg.Normalize {
		return domain.NormalizeL2(vectors[0]), nil
	}
	return vectors[0], nil
}

func (r *Retriever) candidates(hits domain.QueryHits) []domain.Candidate {
	out := make([]domain.Candidate, 0, hits.Len())
	for i, id := range hits.IDs {
		var meta map[string]any
		if i < len(hits.Metadatas) {
			meta = domain.SanitizeMetadata(hits.Metadatas[i])
		} else {
			meta = map[string]any{}
		}
		var text string
		if i < len(hits.Documents) {
			text = hits.Documents[i]
		}
		var similarity float64
		if i < len(hits.Distances) {
			similarity = r.cfg.Metric.Similarity(hits.Distances[i])
		}
		act, _ := meta["act"].(string)
		section, _ := meta["section"].(string)
		out = append(out, domain.Candidate{
			ID:              id,
			Text:            text,
			Act:             act,
			Section:         section,
			Metadata:        meta,
			SimilarityScore: similarity,
			Rank:            len(out) + 1,
		})
	}
	return out
}
