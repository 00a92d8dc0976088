package crossencoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

func TestScoreRestoresInputOrder(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req struct {
			Query string   `json:"query"`
			Texts []string `json:"texts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "unfair dismissal" || len(req.Texts) != 3 {
			t.Errorf("unexpected request %+v", req)
		}
		// TEI returns results sorted by score.
		_, _ = w.Write([]byte(`[{"index":2,"score":4.1},{"index":0,"score":1.5},{"index":1,"score":-2.0}]`))
	}))
	defer server.Close()

	pairs := []domain.ScorePair{
		{Query: "unfair dismissal", Text: "a"},
		{Query: "unfair dismissal", Text: "b"},
		{Query: "unfair dismissal", Text: "c"},
	}
	scores, err := New(server.URL, true, nil).Score(context.Background(), pairs)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	want := []float64{1.5, -2.0, 4.1}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("score %d: want %v, got %v", i, want[i], scores[i])
		}
	}
	if requests.Load() != 1 {
		t.Fatalf("expected one request for a shared query, got %d", requests.Load())
	}
}

func TestScoreRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":1}]`))
	}))
	defer server.Close()

	_, err := New(server.URL, true, nil).Score(context.Background(), []domain.ScorePair{{Query: "q", Text: "a"}, {Query: "q", Text: "b"}})
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestScoreRetriesThenReportsTemporary(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	_, err := New(server.URL, true, exec).Score(context.Background(), []domain.ScorePair{{Query: "q", Text: "a"}})
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}
