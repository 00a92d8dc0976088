package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

const (
	serviceName = "ollama"
	userAgent   = "legal-retrieval"

	// A batch of 64 e5-large vectors is about 1.5 MiB of JSON.
	maxResponseBytes = 32 << 20
)

// execute runs one call through the executor under "ollama_<operation>" and
// marks retryable failures as temporary.
func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor == nil {
		err = fn(ctx)
	} else {
		err = c.executor.Execute(ctx, serviceName+"_"+operation, fn, resilience.ClassifyHTTPError)
	}
	return resilience.WrapTemporary(serviceName+" "+operation, err, resilience.ClassifyHTTPError)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	return c.execute(ctx, operation, func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body), operation)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, out, operation)
	})
}

func (c *Client) getJSON(ctx context.Context, path string, out any, operation string) error {
	return c.execute(ctx, operation, func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil, operation)
		if err != nil {
			return err
		}
		return c.do(req, out, operation)
	})
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, operation string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func (c *Client) do(req *http.Request, out any, operation string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError(serviceName, operation, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
