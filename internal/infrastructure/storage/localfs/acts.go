package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/actparser"
)

const (
	actsDir     = "acts"
	actSuffix   = ".json"
	chunksDir   = "chunks"
	chunkSuffix = "_chunks.json"
)

func (s *Storage) SaveAct(_ context.Context, act *domain.Act) error {
	if act == nil || strings.TrimSpace(act.Name) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save act", errors.New("act name is required"))
	}
	path := filepath.Join(s.basePath, actsDir, fileName(act.Name)+actSuffix)
	return writeAtomic(path, func(w io.Writer) error {
		return actparser.EncodeAct(w, act)
	})
}

// LoadAct reads a parsed act. Files in the legacy map layout are accepted.
func (s *Storage) LoadAct(_ context.Context, name string) (*domain.Act, error) {
	path := filepath.Join(s.basePath, actsDir, fileName(name)+actSuffix)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "load act", fmt.Errorf("act %q", name))
		}
		return nil, fmt.Errorf("open act file: %w", err)
	}
	defer f.Close()

	act, err := actparser.DecodeAct(f)
	if err != nil {
		return nil, fmt.Errorf("decode act %q: %w", name, err)
	}
	if act.Name == "" {
		act.Name = name
	}
	return act, nil
}

func (s *Storage) ListActs(_ context.Context) ([]string, error) {
	return listStems(filepath.Join(s.basePath, actsDir), actSuffix)
}

func listStems(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, suffix))
	}
	sort.Strings(out)
	return out, nil
}
