package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

type classifierFake struct {
	result domain.Classification
	err    error
	delay  time.Duration
	calls  int
}

func (f *classifierFake) Classify(context.Context, string) (domain.Classification, error) {
	f.calls++
	time.Sleep(f.delay)
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.result, nil
}

type catalogFake map[string]string

func (f catalogFake) Canonical(label string) (string, bool) {
	name, ok := f[strings.ToLower(label)]
	return name, ok
}

func (f catalogFake) Names() []string {
	out := make([]string, 0, len(f))
	for _, name := range f {
		out = append(out, name)
	}
	return out
}

type embedderFake struct {
	mu     sync.Mutex
	tag    string
	vector []float32
	err    error
	texts  [][]string
	roles  []domain.EmbedRole
	short  bool
}

func (f *embedderFake) Embed(_ context.Context, texts []string, role domain.EmbedRole) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, append([]string(nil), texts...))
	f.roles = append(f.roles, role)
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		v := f.vector
		if v == nil {
			v = []float32{3, 4}
		}
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}

func (f *embedderFake) ModelTag() string {
	if f.tag == "" {
		return "fake/e5"
	}
	return f.tag
}

type vectorStoreFake struct {
	mu        sync.Mutex
	hits      domain.QueryHits
	queryErr  error
	upsertErr error
	failOn    int
	upserts   [][]domain.IndexedRecord
	lastTopK  int
	lastVec   []float32
	filter    domain.SearchFilter
	queries   int
}

func (f *vectorStoreFake) Upsert(_ context.Context, records []domain.IndexedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil && len(f.upserts)+1 >= f.failOn {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *vectorStoreFake) Query(_ context.Context, vector []float32, topK int, filter domain.SearchFilter) (domain.QueryHits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	f.lastVec = vector
	f.lastTopK = topK
	f.filter = filter
	if f.queryErr != nil {
		return domain.QueryHits{}, f.queryErr
	}
	return f.hits, nil
}

type crossEncoderFake struct {
	scores func(pairs []domain.ScorePair) ([]float64, error)
	calls  int
	sizes  []int
	texts  []string
}

func (f *crossEncoderFake) Score(_ context.Context, pairs []domain.ScorePair) ([]float64, error) {
	f.calls++
	f.sizes = append(f.sizes, len(pairs))
	for _, p := range pairs {
		f.texts = append(f.texts, p.Text)
	}
	return f.scores(pairs)
}

type auditFake struct {
	records []domain.AuditRecord
	err     error
}

func (f *auditFake) RecordQuery(_ context.Context, rec domain.AuditRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type observerFake struct {
	results []*domain.QueryResult
	errs    []error
}

func (f *observerFake) ObserveQuery(result *domain.QueryResult, err error) {
	f.results = append(f.results, result)
	f.errs = append(f.errs, err)
}

type chunkStoreFake struct {
	byAct   map[string][]domain.Chunk
	loadErr error
}

func (f *chunkStoreFake) SaveChunks(_ context.Context, act string, chunks []domain.Chunk) error {
	if f.byAct == nil {
		f.byAct = map[string][]domain.Chunk{}
	}
	f.byAct[act] = chunks
	return nil
}

func (f *chunkStoreFake) LoadChunks(_ context.Context, act string) ([]domain.Chunk, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	chunks, ok := f.byAct[act]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "load chunks", io.EOF)
	}
	return chunks, nil
}

func (f *chunkStoreFake) ListActs(context.Context) ([]string, error) {
	out := make([]string, 0, len(f.byAct))
	for act := range f.byAct {
		out = append(out, act)
	}
	return out, nil
}

func hitsOf(ids ...string) domain.QueryHits {
	var hits domain.QueryHits
	for i, id := range ids {
		hits.IDs = append(hits.IDs, id)
		hits.Documents = append(hits.Documents, "text "+id)
		hits.Metadatas = append(hits.Metadatas, map[string]any{"act": "Employment Act", "section": id})
		hits.Distances = append(hits.Distances, 0.1*float64(i+1))
	}
	return hits
}
