package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

const serviceName = "crossencoder"

// Client scores query/passage pairs against a text-embeddings-inference style
// /rerank endpoint: {"query","texts"} -> [{"index","score"}].
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	rawScores  bool
}

func New(baseURL string, rawScores bool, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
		rawScores:  rawScores,
	}
}

// Score returns one score per pair in input order. Consecutive pairs sharing a
// query go out in a single request.
func (c *Client) Score(ctx context.Context, pairs []domain.ScorePair) ([]float64, error) {
	scores := make([]float64, 0, len(pairs))
	for start := 0; start < len(pairs); {
		end := start + 1
		for end < len(pairs) && pairs[end].Query == pairs[start].Query {
			end++
		}
		texts := make([]string, 0, end-start)
		for _, p := range pairs[start:end] {
			texts = append(texts, p.Text)
		}
		group, err := c.rerank(ctx, pairs[start].Query, texts)
		if err != nil {
			return nil, err
		}
		scores = append(scores, group...)
		start = end
	}
	return scores, nil
}

func (c *Client) rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"query":      query,
		"texts":      texts,
		"raw_scores": c.rawScores,
		"truncate":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("crossencoder rerank request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewStatusError(serviceName, "rerank", resp)
		}
		results = results[:0]
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		return nil
	}

	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, serviceName+"_rerank", call, resilience.ClassifyHTTPError)
	}
	if err != nil {
		return nil, resilience.WrapTemporary("crossencoder rerank", err, resilience.ClassifyHTTPError)
	}

	if len(results) != len(texts) {
		return nil, fmt.Errorf("crossencoder rerank: expected %d scores, got %d", len(texts), len(results))
	}
	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(texts) || seen[r.Index] {
			return nil, fmt.Errorf("crossencoder rerank: invalid result index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}
	return scores, nil
}

// Ping checks the /health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "crossencoder ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "crossencoder ping", resilience.NewStatusError(serviceName, "health", resp))
	}
	return nil
}
