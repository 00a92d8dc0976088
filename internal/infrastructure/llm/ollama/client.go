package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds an Ollama client. A nil executor disables retries and circuit
// breaking.
func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Ping checks that the server answers and that the embedding model is pulled.
func (c *Client) Ping(ctx context.Context) error {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &tags, "tags"); err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "ollama ping", err)
	}
	for _, m := range tags.Models {
		if m.Name == c.embedModel || strings.TrimSuffix(m.Name, ":latest") == c.embedModel {
			return nil
		}
	}
	return domain.WrapError(domain.ErrCollaboratorUnavailable, "ollama ping", fmt.Errorf("embedding model %q is not available", c.embedModel))
}

// Classifier predicts the governing act of a query with the generation model.
type Classifier struct {
	client *Client
	acts   []string
}

func NewClassifier(client *Client, acts []string) *Classifier {
	return &Classifier{client: client, acts: acts}
}

func (c *Classifier) Classify(ctx context.Context, query string) (domain.Classification, error) {
	respText, err := c.client.generateJSON(ctx, buildClassificationPrompt(query, c.acts))
	if err != nil {
		return domain.Classification{}, err
	}

	var raw struct {
		Act        string  `json:"act"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}

	label := strings.TrimSpace(raw.Act)
	if label == "" || strings.EqualFold(label, "none") {
		return domain.Classification{}, nil
	}
	return domain.Classification{Label: label, Confidence: clamp01(raw.Confidence)}, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) ModelTag() string {
	return "ollama/" + e.client.embedModel
}

// Embed sends texts as given; role prefixes are applied by the caller.
func (e *Embedder) Embed(ctx context.Context, texts []string, _ domain.EmbedRole) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d vectors, got %d", len(texts), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
