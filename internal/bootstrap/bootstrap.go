package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uhaki/legal-retrieval/internal/config"
	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
	"github.com/uhaki/legal-retrieval/internal/core/usecase"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/actparser"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/cache/valkey"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/chunking"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/extractor/pdf"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/extractor/plaintext"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/llm/ollama"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/llm/openai"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/queue/nats"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/report/xlsx"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/repository/postgres"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/rerank/crossencoder"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/storage/localfs"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/vector/qdrantgrpc"
	"github.com/uhaki/legal-retrieval/internal/observability/metrics"
)

const startupCheckTimeout = 10 * time.Second

// Pinger reports whether a collaborator is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the binary-specific observers. All fields are optional.
// RequireCollection makes a missing vector collection fatal at startup; index
// writers leave it false because the first upsert creates the collection.
type Options struct {
	Dependencies      *metrics.DependencyMetrics
	QueryObserver     ports.QueryObserver
	IndexObserver     ports.IndexObserver
	RequireCollection bool
}

type App struct {
	Config  config.Config
	Storage *localfs.Storage
	Catalog *config.ActCatalog
	Audit   *postgres.AuditRepository

	indexRuns *postgres.IndexRunRepository
	executor  *resilience.Executor

	CorpusUC *usecase.CorpusUseCase
	IndexUC  *usecase.IndexUseCase
	QueryUC  *usecase.QueryUseCase
	EvalUC   *usecase.EvalUseCase

	// HealthChecks is keyed by collaborator name.
	HealthChecks map[string]Pinger

	queueOnce sync.Once
	queue     *nats.Queue
	queueErr  error

	mu       sync.Mutex
	closeFns []func()
}

// NewCorpus wires the offline parts only: file storage, parsing, chunking and
// the optional audit log. No model or vector store is contacted.
func NewCorpus(ctx context.Context, cfg config.Config) (*App, error) {
	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	catalog, err := config.LoadActCatalog(cfg.ActCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load act catalog: %w", err)
	}

	app := &App{
		Config:       cfg,
		Storage:      storage,
		Catalog:      catalog,
		HealthChecks: make(map[string]Pinger),
	}

	chunker := chunking.NewChunker(chunking.Config{
		MaxTokens:      cfg.ChunkMaxTokens,
		OverlapTokens:  cfg.ChunkOverlapTokens,
		MinChunkTokens: cfg.ChunkMinTokens,
	})
	extractors := map[string]ports.TextExtractor{
		".txt": plaintext.NewExtractor(),
		".pdf": pdf.NewExtractor(),
	}
	app.CorpusUC = usecase.NewCorpusUseCase(storage, extractors, actparser.New(), storage, chunker, storage.Chunks())

	if cfg.AuditEnabled {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			app.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Audit = postgres.NewAuditRepository(db)
		app.indexRuns = postgres.NewIndexRunRepository(db)
	}

	return app, nil
}

// New wires the full retrieval pipeline on top of NewCorpus. The embedder and
// vector store must answer a ping before New returns.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app, err := NewCorpus(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := app.wirePipeline(ctx, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wirePipeline(ctx context.Context, opts Options) error {
	cfg := a.Config

	metric, err := domain.ParseDistanceMetric(cfg.VectorDistance)
	if err != nil {
		return err
	}

	resCfg := resilience.DefaultConfig()
	resCfg.RetryMaxAttempts = cfg.ResilienceRetryAttempts
	resCfg.BreakerEnabled = cfg.ResilienceBreaker
	if opts.Dependencies != nil {
		resCfg.OnStateChange = opts.Dependencies.BreakerStateChanged
	}
	executor := resilience.NewExecutor(resCfg)
	a.executor = executor
	a.HealthChecks["circuit_breakers"] = breakerCheck{executor: executor}

	var ollamaClient *ollama.Client
	if cfg.EmbedProvider == "ollama" || cfg.ClassifierEnabled {
		ollamaClient = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	}

	var embedder ports.Embedder
	switch cfg.EmbedProvider {
	case "ollama":
		embedder = ollama.NewEmbedder(ollamaClient)
		a.HealthChecks["embedder"] = ollamaClient
	case "openai":
		e := openai.NewEmbedder(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIEmbedModel,
			Dimensions: cfg.OpenAIEmbedDimensions,
		}, executor)
		embedder = e
		a.HealthChecks["embedder"] = e
	default:
		return fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}

	if cfg.EmbedCacheEnabled {
		client, err := valkey.NewClient(cfg.ValkeyAddrs, cfg.ValkeyPassword)
		if err != nil {
			return fmt.Errorf("init embedding cache: %w", err)
		}
		a.onClose(client.Close)
		var counter *prometheus.CounterVec
		if opts.Dependencies != nil {
			counter = opts.Dependencies.EmbeddingCacheCounter()
		}
		cached := valkey.New(embedder, client, time.Duration(cfg.EmbedCacheTTLSeconds)*time.Second, counter)
		embedder = cached
		a.HealthChecks["embed_cache"] = cached
	}

	var store ports.VectorStore
	switch cfg.VectorBackend {
	case "rest":
		s := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, metric, executor)
		store = s
		a.HealthChecks["vector_store"] = s
	case "grpc":
		s, err := qdrantgrpc.New(cfg.QdrantGRPCAddr, cfg.QdrantCollection, metric, executor)
		if err != nil {
			return fmt.Errorf("init qdrant grpc: %w", err)
		}
		a.onClose(func() { _ = s.Close() })
		store = s
		a.HealthChecks["vector_store"] = s
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()
	if err := a.HealthChecks["embedder"].Ping(checkCtx); err != nil {
		return fmt.Errorf("embedder health check: %w", err)
	}
	if err := checkVectorStore(checkCtx, a.HealthChecks["vector_store"], opts.RequireCollection); err != nil {
		return err
	}

	var classifier ports.Classifier
	if cfg.ClassifierEnabled {
		if acts, err := a.Storage.ListActs(ctx); err == nil {
			a.Catalog.Merge(acts)
		} else {
			slog.Warn("act_list_failed", "error", err)
		}
		classifier = ollama.NewClassifier(ollamaClient, a.Catalog.Names())
	}

	var encoder ports.CrossEncoder
	if cfg.CrossEncoderURL != "" {
		ce := crossencoder.New(cfg.CrossEncoderURL, cfg.CrossEncoderRawScores, executor)
		encoder = ce
		a.HealthChecks["cross_encoder"] = ce
		if err := ce.Ping(checkCtx); err != nil {
			slog.Warn("cross_encoder_unreachable", "url", cfg.CrossEncoderURL, "error", err)
		}
	}

	router := usecase.NewQueryRouter(classifier, a.Catalog, cfg.RouterConfidenceThreshold)
	retriever := usecase.NewRetriever(embedder, store, usecase.RetrieverConfig{
		QueryPrefix: cfg.EmbedQueryPrefix,
		Normalize:   cfg.EmbedNormalize,
		Metric:      metric,
	})
	reranker := usecase.NewFusionReranker(encoder, usecase.RerankConfig{
		Alpha:     cfg.RerankAlpha,
		BatchSize: cfg.RerankBatchSize,
		MaxChars:  cfg.RerankMaxChars,
		HeadChars: cfg.RerankHeadChars,
		TailChars: cfg.RerankTailChars,
	})

	a.QueryUC = usecase.NewQueryUseCase(router, retriever, reranker, usecase.QueryConfig{
		TopKRetrieve: cfg.RAGTopKRetrieve,
		TopKReturn:   cfg.RAGTopKReturn,
		Timeout:      time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
	})
	if a.Audit != nil {
		a.QueryUC.WithAudit(a.Audit)
	}
	if opts.QueryObserver != nil {
		a.QueryUC.WithObserver(opts.QueryObserver)
	}

	a.IndexUC = usecase.NewIndexUseCase(a.Storage.Chunks(), embedder, store, usecase.IndexConfig{
		BatchSize:     cfg.IndexBatchSize,
		PassagePrefix: cfg.EmbedPassagePrefix,
		Normalize:     cfg.EmbedNormalize,
	})
	if a.indexRuns != nil {
		a.IndexUC.WithRunRecorder(a.indexRuns)
	}
	if opts.IndexObserver != nil {
		a.IndexUC.WithObserver(opts.IndexObserver)
	}

	a.EvalUC = usecase.NewEvalUseCase(a.QueryUC, xlsx.NewWriter())

	slog.Info("pipeline_ready",
		"embed_provider", cfg.EmbedProvider,
		"embed_model", embedder.ModelTag(),
		"vector_backend", cfg.VectorBackend,
		"collection", cfg.QdrantCollection,
		"classifier", classifier != nil,
		"cross_encoder", encoder != nil,
		"audit", a.Audit != nil,
	)
	return nil
}

// Queue connects to the index queue on first use.
func (a *App) Queue() (*nats.Queue, error) {
	a.queueOnce.Do(func() {
		a.queue, a.queueErr = nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
			ResilienceExecutor: a.executor,
		})
		if a.queueErr == nil {
			a.onClose(a.queue.Close)
		}
	})
	return a.queue, a.queueErr
}

func (a *App) onClose(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	a.mu.Lock()
	fns := a.closeFns
	a.closeFns = nil
	a.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// breakerCheck fails while any collaborator breaker is open or half-open.
type breakerCheck struct {
	executor *resilience.Executor
}

func (c breakerCheck) Ping(context.Context) error {
	if open := c.executor.OpenBreakers(); len(open) > 0 {
		return fmt.Errorf("breakers not closed: %s", strings.Join(open, ", "))
	}
	return nil
}

func checkVectorStore(ctx context.Context, store Pinger, requireCollection bool) error {
	err := store.Ping(ctx)
	if err == nil {
		return nil
	}
	if !requireCollection && domain.IsKind(err, domain.ErrNotFound) {
		slog.Warn("vector_collection_missing", "error", err)
		return nil
	}
	return fmt.Errorf("vector_store health check: %w", err)
}
