package ports

import (
	"context"
	"io"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// Classifier predicts the act a query most likely concerns.
type Classifier interface {
	Classify(ctx context.Context, query string) (domain.Classification, error)
}

// Embedder builds vectors for passages and queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string, role domain.EmbedRole) ([][]float32, error)
	ModelTag() string
}

// CrossEncoder scores (query, passage) pairs jointly. Scores are returned in
// input order.
type CrossEncoder interface {
	Score(ctx context.Context, pairs []domain.ScorePair) ([]float64, error)
}

// VectorStore persists indexed records and answers nearest-neighbour queries.
type VectorStore interface {
	Upsert(ctx context.Context, records []domain.IndexedRecord) error
	Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) (domain.QueryHits, error)
}

// Chunker splits a parsed act into retrieval chunks.
type Chunker interface {
	Chunk(act *domain.Act) []domain.Chunk
}

// ChunkStore keeps the per-act chunk checkpoint between chunking and indexing.
type ChunkStore interface {
	SaveChunks(ctx context.Context, act string, chunks []domain.Chunk) error
	LoadChunks(ctx context.Context, act string) ([]domain.Chunk, error)
	ListActs(ctx context.Context) ([]string, error)
}

// ActStore keeps parsed acts.
type ActStore interface {
	SaveAct(ctx context.Context, act *domain.Act) error
	LoadAct(ctx context.Context, name string) (*domain.Act, error)
	ListActs(ctx context.Context) ([]string, error)
}

// ObjectStorage stores raw source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from a raw source document.
type TextExtractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// ActParser turns cleaned statute text into a structured act.
type ActParser interface {
	Parse(name, text string) (*domain.Act, error)
}

// AuditLog records one summary row per answered query.
type AuditLog interface {
	RecordQuery(ctx context.Context, rec domain.AuditRecord) error
}

// IndexQueue publishes/consumes index jobs, one act per message.
type IndexQueue interface {
	PublishIndexAct(ctx context.Context, act string) error
	SubscribeIndexAct(ctx context.Context, handler func(context.Context, string) error) error
}

// QueryObserver receives per-query outcomes, typically for metrics.
type QueryObserver interface {
	ObserveQuery(result *domain.QueryResult, err error)
}

// ReportWriter persists evaluation rows.
type ReportWriter interface {
	WriteEval(ctx context.Context, path string, rows []domain.EvalRow) error
}

// ActCatalog resolves classifier labels and aliases to canonical act names.
type ActCatalog interface {
	Canonical(label string) (string, bool)
	Names() []string
}

// IndexRunRecorder keeps a history of index runs.
type IndexRunRecorder interface {
	RecordIndexRun(ctx context.Context, embedModel string, stats domain.IndexStats, runErr error) error
}

// IndexObserver receives per-act index outcomes, typically for metrics.
type IndexObserver interface {
	ObserveIndex(stats domain.IndexStats, err error)
}
