package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const (
	DefaultRerankAlpha     = 0.7
	DefaultRerankBatchSize = 32
	DefaultRerankMaxChars  = 1200
	DefaultRerankHeadChars = 900
	DefaultRerankTailChars = 300

	rerankEllipsis  = "\n...\n"
	degenerateRange = 1e-9
)

// RerankConfig bounds cross-encoder input. Passages longer than MaxChars
// runes keep HeadChars from the start and TailChars from the end.
type RerankConfig struct {
	Alpha     float64
	BatchSize int
	MaxChars  int
	HeadChars int
	TailChars int
}

// FusionReranker fuses cross-encoder relevance with retrieval similarity.
type FusionReranker struct {
	encoder ports.CrossEncoder
	cfg     RerankConfig
}

func NewFusionReranker(encoder ports.CrossEncoder, cfg RerankConfig) *FusionReranker {
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultRerankAlpha
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRerankBatchSize
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultRerankMaxChars
	}
	if cfg.HeadChars <= 0 {
		cfg.HeadChars = DefaultRerankHeadChars
	}
	if cfg.TailChars <= 0 {
		cfg.TailChars = DefaultRerankTailChars
	}
	if cfg.HeadChars+cfg.TailChars > cfg.MaxChars {
		cfg.HeadChars = cfg.MaxChars * 3 / 4
		cfg.TailChars = cfg.MaxChars - cfg.HeadChars
	}
	return &FusionReranker{encoder: encoder, cfg: cfg}
}

// Rerank reorders candidates by fused score. When the cross-encoder is
// missing or fails, similarity order is kept and degraded is true.
func (r *FusionReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, bool) {
	if len(candidates) == 0 {
		return []domain.Candidate{}, false
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)

	if r.encoder == nil {
		return fallbackOrder(out), true
	}

	scores, err := r.score(ctx, query, out)
	if err != nil {
		slog.WarnContext(ctx, "rerank_degraded", "error", err, "candidates", len(out))
		return fallbackOrder(out), true
	}

	ce := minMax(scores)
	sims := make([]float64, len(out))
	for i := range out {
		sims[i] = out[i].SimilarityScore
	}
	sim := minMax(sims)

	for i := range out {
		out[i].RerankScore = scores[i]
		out[i].FusedScore = r.cfg.Alpha*ce[i] + (1-r.cfg.Alpha)*sim[i]
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].Rank < out[j].Rank
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, false
}

func (r *FusionReranker) score(ctx context.Context, query string, candidates []domain.Candidate) ([]float64, error) {
	scores := make([]float64, 0, len(candidates))
	for start := 0; start < len(candidates); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(candidates))
		pairs := make([]domain.ScorePair, 0, end-start)
		for _, c := range candidates[start:end] {
			pairs = append(pairs, domain.ScorePair{Query: query, Text: trimText(c.Text, r.cfg)})
		}
		batch, err := r.encoder.Score(ctx, pairs)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(pairs) {
			return nil, fmt.Errorf("cross-encoder returned %d scores for %d pairs", len(batch), len(pairs))
		}
		for i, v := range batch {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("cross-encoder returned non-finite score %v for pair %d", v, start+i)
			}
		}
		scores = append(scores, batch...)
	}
	return scores, nil
}

// fallbackOrder keeps similarity order and mirrors similarity into the
// rerank and fused scores.
func fallbackOrder(candidates []domain.Candidate) []domain.Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rank < candidates[j].Rank
	})
	for i := range candidates {
		candidates[i].RerankScore = candidates[i].SimilarityScore
		candidates[i].FusedScore = candidates[i].SimilarityScore
		candidates[i].Rank = i + 1
	}
	return candidates
}

// minMax scales values to [0,1]. A degenerate range maps everything to 0.
func minMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi-lo < degenerateRange {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// trimText keeps the head and tail of long passages so the cross-encoder sees
// both the opening and the closing of a section.
func trimText(text string, cfg RerankConfig) string {
	runes := []rune(text)
	if len(runes) <= cfg.MaxChars {
		return text
	}
	return string(runes[:cfg.HeadChars]) + rerankEllipsis + string(runes[len(runes)-cfg.TailChars:])
}
