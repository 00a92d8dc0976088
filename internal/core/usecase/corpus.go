package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const rawPrefix = "raw/"

// CorpusUseCase prepares the corpus for indexing: raw statute files become
// parsed acts, parsed acts become chunk checkpoints.
type CorpusUseCase struct {
	raw        ports.ObjectStorage
	extractors map[string]ports.TextExtractor
	parser     ports.ActParser
	acts       ports.ActStore
	chunker    ports.Chunker
	chunks     ports.ChunkStore
}

// NewCorpusUseCase wires the corpus pipeline. extractors is keyed by lower
// case file extension including the dot, e.g. ".pdf".
func NewCorpusUseCase(
	raw ports.ObjectStorage,
	extractors map[string]ports.TextExtractor,
	parser ports.ActParser,
	acts ports.ActStore,
	chunker ports.Chunker,
	chunks ports.ChunkStore,
) *CorpusUseCase {
	return &CorpusUseCase{
		raw:        raw,
		extractors: extractors,
		parser:     parser,
		acts:       acts,
		chunker:    chunker,
		chunks:     chunks,
	}
}

// Preprocess stores the raw file, extracts its text and saves the parsed act
// under the file's base name.
func (uc *CorpusUseCase) Preprocess(ctx context.Context, filename string, body io.Reader) (*domain.Act, error) {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "preprocess", fmt.Errorf("no act name in %q", filename))
	}
	extractor, ok := uc.extractors[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "preprocess", fmt.Errorf("unsupported file type %q", ext))
	}

	key := rawPrefix + base
	if err := uc.raw.Save(ctx, key, body); err != nil {
		return nil, fmt.Errorf("save raw %q: %w", base, err)
	}
	rc, err := uc.raw.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open raw %q: %w", base, err)
	}
	defer rc.Close()

	text, err := extractor.Extract(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", base, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "preprocess", errors.New("empty extracted text"))
	}

	act, err := uc.parser.Parse(name, text)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", name, err)
	}
	if err := uc.acts.SaveAct(ctx, act); err != nil {
		return nil, fmt.Errorf("save act %q: %w", name, err)
	}
	slog.InfoContext(ctx, "act_preprocessed", "act", act.Name, "parts", len(act.Parts), "schedules", len(act.Schedules))
	return act, nil
}

// ChunkAct chunks one parsed act and writes its checkpoint.
func (uc *CorpusUseCase) ChunkAct(ctx context.Context, name string) (int, error) {
	act, err := uc.acts.LoadAct(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("load act %q: %w", name, err)
	}
	chunks := uc.chunker.Chunk(act)
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk act", fmt.Errorf("act %q produced zero chunks", name))
	}
	if err := uc.chunks.SaveChunks(ctx, act.Name, chunks); err != nil {
		return 0, fmt.Errorf("save chunks %q: %w", name, err)
	}
	slog.InfoContext(ctx, "act_chunked", "act", act.Name, "chunks", len(chunks))
	return len(chunks), nil
}

// ChunkAll chunks every parsed act. Failed acts are returned by name and do
// not stop the run.
func (uc *CorpusUseCase) ChunkAll(ctx context.Context) (map[string]int, map[string]string, error) {
	names, err := uc.acts.ListActs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list acts: %w", err)
	}
	counts := make(map[string]int, len(names))
	failed := map[string]string{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return counts, failed, err
		}
		n, err := uc.ChunkAct(ctx, name)
		if err != nil {
			slog.ErrorContext(ctx, "chunk_act_failed", "act", name, "error", err)
			failed[name] = err.Error()
			continue
		}
		counts[name] = n
	}
	return counts, failed, nil
}
