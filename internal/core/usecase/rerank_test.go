package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

func candidatesWithSimilarity(sims ...float64) []domain.Candidate {
	out := make([]domain.Candidate, len(sims))
	for i, s := range sims {
		out[i] = domain.Candidate{
			ID:              string(rune('a' + i)),
			Text:            "passage " + string(rune('a'+i)),
			SimilarityScore: s,
			Rank:            i + 1,
		}
	}
	return out
}

func TestRerankFusesNormalizedScores(t *testing.T) {
	encoder := &crossEncoderFake{scores: func(pairs []domain.ScorePair) ([]float64, error) {
		return []float64{-2, 5, 1}, nil
	}}
	got, degraded := NewFusionReranker(encoder, RerankConfig{Alpha: 0.7}).Rerank(
		context.Background(), "q", candidatesWithSimilarity(0.9, 0.8, 0.7))
	if degraded {
		t.Fatalf("unexpected degraded rerank")
	}
	if got[0].ID != "b" {
		t.Fatalf("expected b first, got %s", got[0].ID)
	}
	// b: ce=1, sim=0.5 -> 0.85; a: ce=0, sim=1 -> 0.3; c: ce=3/7, sim=0 -> 0.3
	if math.Abs(got[0].FusedScore-0.85) > 1e-9 {
		t.Fatalf("unexpected fused score %v", got[0].FusedScore)
	}
	if got[0].RerankScore != 5 {
		t.Fatalf("expected raw cross-encoder score kept, got %v", got[0].RerankScore)
	}
	for i, c := range got {
		if c.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, c.Rank)
		}
	}
}

func TestRerankFusionMonotonicInCrossEncoderScore(t *testing.T) {
	base := candidatesWithSimilarity(0.5, 0.5, 0.4)
	run := func(ceA float64) float64 {
		encoder := &crossEncoderFake{scores: func([]domain.ScorePair) ([]float64, error) {
			return []float64{ceA, 1.0, 0}, nil
		}}
		got, _ := NewFusionReranker(encoder, RerankConfig{Alpha: 0.7}).Rerank(context.Background(), "q", base)
		for _, c := range got {
			if c.ID == "a" {
				return c.FusedScore
			}
		}
		t.Fatalf("candidate a missing")
		return 0
	}
	if low, high := run(0.6), run(0.9); high < low {
		t.Fatalf("raising ce score lowered fused score: %v -> %v", low, high)
	}
}

func TestRerankDegenerateRangeNormalizesToZero(t *testing.T) {
	encoder := &crossEncoderFake{scores: func([]domain.ScorePair) ([]float64, error) {
		return []float64{2, 2, 2}, nil
	}}
	got, degraded := NewFusionReranker(encoder, RerankConfig{Alpha: 0.7}).Rerank(
		context.Background(), "q", candidatesWithSimilarity(0.4, 0.4, 0.4))
	if degraded {
		t.Fatalf("unexpected degraded rerank")
	}
	for i, c := range got {
		if c.FusedScore != 0 {
			t.Fatalf("expected fused 0, got %v", c.FusedScore)
		}
		if c.ID != string(rune('a'+i)) {
			t.Fatalf("ties must keep similarity order, got %s at %d", c.ID, i)
		}
	}
}

func TestRerankFallbackWhenCrossEncoderFails(t *testing.T) {
	encoder := &crossEncoderFake{scores: func([]domain.ScorePair) ([]float64, error) {
		return nil, errors.New("tei unavailable")
	}}
	in := candidatesWithSimilarity(0.9, 0.8, 0.7)
	got, degraded := NewFusionReranker(encoder, RerankConfig{Alpha: 0.7}).Rerank(context.Background(), "q", in)
	if !degraded {
		t.Fatalf("expected degraded rerank")
	}
	for i, c := range got {
		if c.ID != in[i].ID || c.RerankScore != c.SimilarityScore || c.FusedScore != c.SimilarityScore {
			t.Fatalf("unexpected fallback candidate %+v", c)
		}
	}
}

func TestRerankFallbackOnCountMismatch(t *testing.T) {
	encoder := &crossEncoderFake{scores: func(pairs []domain.ScorePair) ([]float64, error) {
		return make([]float64, len(pairs)-1), nil
	}}
	_, degraded := NewFusionReranker(encoder, RerankConfig{Alpha: 0.7}).Rerank(
		context.Background(), "q", candidatesWithSimilarity(0.9, 0.8))
	if !degraded {
		t.Fatalf("expected degraded rerank on score count mismatch")
	}
}

func TestRerankFallbackOnNonFiniteScore(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		encoder := &crossEncoderFake{scores: func(pairs []domain.ScorePair) ([]float64, error) {
			return []float64{1.2, bad, -0.4}, nil
		}}
		in := candidatesWithSimilarity(0.9, 0.8, 0.7)
		got, degraded := NewFusionReranker(encoder, RerankConfig{Alpha: 0.7}).Rerank(context.Background(), "q", in)
		if !degraded {
			t.Fatalf("expected degraded rerank for score %v", bad)
		}
		for i, c := range got {
			if c.ID != in[i].ID || c.FusedScore != c.SimilarityScore || math.IsNaN(c.FusedScore) {
				t.Fatalf("score %v: unexpected fallback candidate %+v", bad, c)
			}
		}
	}
}

func TestRerankWithoutEncoderIsDegraded(t *testing.T) {
	got, degraded := NewFusionReranker(nil, RerankConfig{}).Rerank(context.Background(), "q", candidatesWithSimilarity(0.3))
	if !degraded || got[0].FusedScore != 0.3 {
		t.Fatalf("unexpected result %+v degraded=%v", got, degraded)
	}
}

func TestRerankEmptyInput(t *testing.T) {
	got, degraded := NewFusionReranker(nil, RerankConfig{}).Rerank(context.Background(), "q", nil)
	if got == nil || len(got) != 0 || degraded {
		t.Fatalf("expected empty, non-degraded result, got %#v %v", got, degraded)
	}
}

func TestRerankBatchesAndTrimsPairs(t *testing.T) {
	encoder := &crossEncoderFake{scores: func(pairs []domain.ScorePair) ([]float64, error) {
		return make([]float64, len(pairs)), nil
	}}
	in := make([]domain.Candidate, 70)
	for i := range in {
		in[i] = domain.Candidate{ID: "c", Text: "short", Rank: i + 1}
	}
	in[0].Text = strings.Repeat("h", 1000) + strings.Repeat("t", 500)

	NewFusionReranker(encoder, RerankConfig{Alpha: 0.7}).Rerank(context.Background(), "q", in)
	if len(encoder.sizes) != 3 || encoder.sizes[0] != 32 || encoder.sizes[2] != 6 {
		t.Fatalf("unexpected batch sizes %v", encoder.sizes)
	}
	trimmed := encoder.texts[0]
	if !strings.Contains(trimmed, "\n...\n") || len([]rune(trimmed)) != 900+5+300 {
		t.Fatalf("unexpected trimmed text length %d", len([]rune(trimmed)))
	}
	if !strings.HasPrefix(trimmed, strings.Repeat("h", 900)) || !strings.HasSuffix(trimmed, strings.Repeat("t", 300)) {
		t.Fatalf("expected head and tail kept")
	}
}

func TestRerankHonoursConfiguredTrimBounds(t *testing.T) {
	encoder := &crossEncoderFake{scores: func(pairs []domain.ScorePair) ([]float64, error) {
		return make([]float64, len(pairs)), nil
	}}
	in := []domain.Candidate{{ID: "a", Text: strings.Repeat("h", 400) + strings.Repeat("t", 400), Rank: 1}}

	NewFusionReranker(encoder, RerankConfig{Alpha: 0.7, MaxChars: 300, HeadChars: 200, TailChars: 50}).
		Rerank(context.Background(), "q", in)
	trimmed := encoder.texts[0]
	if len([]rune(trimmed)) != 200+5+50 {
		t.Fatalf("unexpected trimmed text length %d", len([]rune(trimmed)))
	}
	if !strings.HasPrefix(trimmed, strings.Repeat("h", 200)+"\n...\n") || !strings.HasSuffix(trimmed, strings.Repeat("t", 50)) {
		t.Fatalf("expected configured head and tail kept")
	}
}

func TestRerankShrinksHeadAndTailToMaxChars(t *testing.T) {
	r := NewFusionReranker(nil, RerankConfig{MaxChars: 400})
	if r.cfg.HeadChars+r.cfg.TailChars > 400 || r.cfg.HeadChars != 300 || r.cfg.TailChars != 100 {
		t.Fatalf("unexpected bounds head=%d tail=%d", r.cfg.HeadChars, r.cfg.TailChars)
	}
}
