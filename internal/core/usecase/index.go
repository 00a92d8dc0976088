package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const (
	DefaultIndexBatchSize = 64
	DefaultPassagePrefix  = "passage: "

	metaEmbedModel = "embed_model"
)

type IndexConfig struct {
	BatchSize     int
	PassagePrefix string
	Normalize     bool
}

// IndexUseCase embeds checkpointed chunks and upserts them into the vector
// store. It is an offline write path: two runs against the same collection
// must not overlap.
type IndexUseCase struct {
	chunks   ports.ChunkStore
	embedder ports.Embedder
	store    ports.VectorStore
	runs     ports.IndexRunRecorder
	observer ports.IndexObserver
	cfg      IndexConfig
}

func NewIndexUseCase(
	chunks ports.ChunkStore,
	embedder ports.Embedder,
	store ports.VectorStore,
	cfg IndexConfig,
) *IndexUseCase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIndexBatchSize
	}
	return &IndexUseCase{
		chunks:   chunks,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}
}

func (uc *IndexUseCase) WithRunRecorder(runs ports.IndexRunRecorder) *IndexUseCase {
	uc.runs = runs
	return uc
}

func (uc *IndexUseCase) WithObserver(observer ports.IndexObserver) *IndexUseCase {
	uc.observer = observer
	return uc
}

// IndexAct indexes one act's chunk checkpoint. A failed batch aborts the act;
// batches already written stay in place and are overwritten on the next run.
func (uc *IndexUseCase) IndexAct(ctx context.Context, act string) (domain.IndexStats, error) {
	started := time.Now()
	stats, err := uc.indexAct(ctx, act)
	stats.Act = act
	stats.Duration = time.Since(started)

	if uc.observer != nil {
		uc.observer.ObserveIndex(stats, err)
	}
	if uc.runs != nil {
		if recErr := uc.runs.RecordIndexRun(context.WithoutCancel(ctx), uc.embedder.ModelTag(), stats, err); recErr != nil {
			slog.Warn("index_run_record_failed", "act", act, "error", recErr)
		}
	}
	if err != nil {
		return stats, err
	}

	slog.InfoContext(ctx, "act_indexed",
		"act", act,
		"chunks", stats.Chunks,
		"batches", stats.Batches,
		"duration_ms", domain.Millis(stats.Duration),
	)
	return stats, nil
}

func (uc *IndexUseCase) indexAct(ctx context.Context, act string) (domain.IndexStats, error) {
	var stats domain.IndexStats
	if strings.TrimSpace(act) == "" {
		return stats, domain.WrapError(domain.ErrInvalidInput, "index act", errors.New("act name is required"))
	}

	chunks, err := uc.chunks.LoadChunks(ctx, act)
	if err != nil {
		return stats, fmt.Errorf("load chunks for %q: %w", act, err)
	}
	if len(chunks) == 0 {
		return stats, domain.WrapError(domain.ErrInvalidInput, "index act", fmt.Errorf("no chunks for %q", act))
	}

	modelTag := uc.embedder.ModelTag()
	for start := 0; start < len(chunks); start += uc.cfg.BatchSize {
		end := min(start+uc.cfg.BatchSize, len(chunks))
		if err := uc.indexBatch(ctx, chunks[start:end], modelTag); err != nil {
			return stats, fmt.Errorf("index %q batch %d: %w", act, stats.Batches+1, err)
		}
		stats.Batches++
		stats.Chunks += end - start
	}
	return stats, nil
}

func (uc *IndexUseCase) indexBatch(ctx context.Context, batch []domain.Chunk, modelTag string) error {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = uc.cfg.PassagePrefix + ch.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts, domain.RolePassage)
	if err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "embed passages", err)
	}
	if len(vectors) != len(batch) {
		return domain.WrapError(
			domain.ErrCollaboratorUnavailable,
			"embed passages",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(batch)),
		)
	}

	records := make([]domain.IndexedRecord, len(batch))
	for i, ch := range batch {
		vector := vectors[i]
		if uc.cfg.Normalize {
			vector = domain.NormalizeL2(vector)
		}
		meta := domain.SanitizeMetadata(ch.Metadata())
		meta[metaEmbedModel] = modelTag
		records[i] = domain.IndexedRecord{
			ID:       domain.ChunkIdentity(ch.Act, ch.Section, ch.ChunkID, modelTag),
			Vector:   vector,
			Text:     ch.Text,
			Metadata: meta,
		}
	}

	if err := uc.store.Upsert(ctx, records); err != nil {
		return domain.WrapError(domain.ErrRetrievalFailure, "upsert records", err)
	}
	return nil
}

// IndexAll indexes every act with a chunk checkpoint. One act's failure is
// reported and the run continues.
func (uc *IndexUseCase) IndexAll(ctx context.Context) (domain.IndexReport, error) {
	report := domain.IndexReport{Failed: map[string]string{}}
	acts, err := uc.chunks.ListActs(ctx)
	if err != nil {
		return report, fmt.Errorf("list chunked acts: %w", err)
	}

	for _, act := range acts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		stats, err := uc.IndexAct(ctx, act)
		if err != nil {
			slog.ErrorContext(ctx, "index_act_failed", "act", act, "error", err)
			report.Failed[act] = err.Error()
			continue
		}
		report.Indexed = append(report.Indexed, stats)
	}
	return report, nil
}
