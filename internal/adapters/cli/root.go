package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

// CorpusService turns raw statute files into parsed acts and chunk files.
type CorpusService interface {
	Preprocess(ctx context.Context, filename string, body io.Reader) (*domain.Act, error)
	ChunkAct(ctx context.Context, name string) (int, error)
	ChunkAll(ctx context.Context) (map[string]int, map[string]string, error)
}

type IndexService interface {
	ports.ActIndexer
	IndexAll(ctx context.Context) (domain.IndexReport, error)
}

type EvalService interface {
	RunAndWrite(ctx context.Context, cases []domain.EvalCase, topK int, path string) ([]domain.EvalRow, error)
}

type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

type ActLister interface {
	ListActs(ctx context.Context) ([]string, error)
}

// Services is what the commands run against. Queue and Audit are optional.
type Services struct {
	Corpus   CorpusService
	Indexer  IndexService
	Queries  ports.QueryService
	Eval     EvalService
	Chunks   ActLister
	Queue    ports.IndexQueue
	Audit    AuditReader
	ServeMCP func(ctx context.Context) error
}

// Loader builds services on demand. Offline commands pass pipeline=false and
// must not require the model or vector store to be reachable.
type Loader func(ctx context.Context, pipeline bool) (*Services, error)

var errNotConfigured = errors.New("service not configured")

func NewRootCommand(load Loader) *cobra.Command {
	root := &cobra.Command{
		Use:   "lawctl",
		Short: "Legal passage retrieval toolkit",
		Long: `lawctl prepares statute corpora and queries the retrieval pipeline.

Typical flow:
  lawctl preprocess data/acts/*.pdf
  lawctl chunk
  lawctl index
  lawctl query "how long is maternity leave"`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newPreprocessCommand(load),
		newChunkCommand(load),
		newIndexCommand(load),
		newQueryCommand(load),
		newEvalCommand(load),
		newAuditCommand(load),
		newMCPCommand(load),
	)
	return root
}
