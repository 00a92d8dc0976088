package ports

import (
	"context"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// QueryService is the inbound contract for answering a legal question with
// ranked passages.
type QueryService interface {
	AnswerQuery(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}

// ActIndexer is the inbound contract for the offline index write path.
type ActIndexer interface {
	IndexAct(ctx context.Context, act string) (domain.IndexStats, error)
}
