package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

const serviceName = "openai"

// Embedder calls an OpenAI-compatible embeddings endpoint (OpenAI, TEI,
// vLLM, Nebius).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	executor   *resilience.Executor
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

func NewEmbedder(cfg Config, executor *resilience.Executor) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		executor:   executor,
	}
}

func (e *Embedder) ModelTag() string {
	return "openai/" + string(e.model)
}

func (e *Embedder) Embed(ctx context.Context, texts []string, _ domain.EmbedRole) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var resp openai.EmbeddingResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return parseAPIError(err)
		}
		return nil
	}

	var err error
	if e.executor == nil {
		err = call(ctx)
	} else {
		err = e.executor.Execute(ctx, serviceName+"_embed", call, resilience.ClassifyHTTPError)
	}
	if err != nil {
		return nil, resilience.WrapTemporary("openai embed", err, resilience.ClassifyHTTPError)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: expected %d vectors, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Ping verifies API availability via ListModels.
func (e *Embedder) Ping(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "openai ping", parseAPIError(err))
	}
	return nil
}

// parseAPIError turns go-openai errors into resilience.StatusError so the
// shared HTTP classifier can decide on retries.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := extractDetail(reqErr.Body)
		if body == "" {
			body = string(reqErr.Body)
		}
		return &resilience.StatusError{
			Service:    serviceName,
			Operation:  "embed",
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
			Body:       body,
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &resilience.StatusError{
			Service:    serviceName,
			Operation:  "embed",
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
			Body:       apiErr.Message,
		}
	}
	return fmt.Errorf("openai embed request: %w", err)
}

func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
