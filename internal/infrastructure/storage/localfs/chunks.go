package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// ChunkStore is the chunk checkpoint view of Storage. It shares the base
// directory but lists chunk files rather than parsed acts.
type ChunkStore struct {
	s *Storage
}

func (s *Storage) Chunks() *ChunkStore {
	return &ChunkStore{s: s}
}

func (c *ChunkStore) SaveChunks(_ context.Context, act string, chunks []domain.Chunk) error {
	path := c.path(act)
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(chunks)
	})
}

func (c *ChunkStore) LoadChunks(_ context.Context, act string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(c.path(act))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "load chunks", fmt.Errorf("no chunk file for act %q", act))
		}
		return nil, fmt.Errorf("read chunk file: %w", err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode chunks", err)
	}
	return chunks, nil
}

func (c *ChunkStore) ListActs(_ context.Context) ([]string, error) {
	return listStems(filepath.Join(c.s.basePath, chunksDir), chunkSuffix)
}

func (c *ChunkStore) path(act string) string {
	return filepath.Join(c.s.basePath, chunksDir, fileName(act)+chunkSuffix)
}
