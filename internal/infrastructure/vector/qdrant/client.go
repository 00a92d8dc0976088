package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

const serviceName = "qdrant"

// Client talks to the Qdrant REST API.
type Client struct {
	baseURL    string
	collection string
	metric     domain.DistanceMetric
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, metric domain.DistanceMetric, executor *resilience.Executor) *Client {
	if metric == "" {
		metric = domain.DistanceCosine
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		metric:     metric,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Upsert(ctx context.Context, records []domain.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	size := len(records[0].Vector)
	if err := c.ensureCollection(ctx, size); err != nil {
		return err
	}

	points := make([]point, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != size {
			return fmt.Errorf("record %s: vector size %d, batch uses %d", rec.ID, len(rec.Vector), size)
		}
		points = append(points, point{
			ID:      PointID(rec.ID),
			Vector:  rec.Vector,
			Payload: BuildPayload(rec.ID, rec.Text, rec.Metadata),
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(c.collection))
	return c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

// Query returns hits ordered by Qdrant score. Scores are converted back into
// distances so callers see the store-agnostic contract.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) (domain.QueryHits, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if filter.Act != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": PayloadAct,
					"match": map[string]any{
						"value": filter.Act,
					},
				},
			},
		}
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(c.collection))
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		if isNotFound(err) {
			return domain.QueryHits{}, fmt.Errorf("collection %s does not exist: %w", c.collection, err)
		}
		return domain.QueryHits{}, err
	}

	hits := domain.QueryHits{}
	for _, r := range searchResp.Result {
		id, text, meta := SplitPayload(fmt.Sprintf("%v", r.ID), r.Payload)
		hits.IDs = append(hits.IDs, id)
		hits.Documents = append(hits.Documents, text)
		hits.Metadatas = append(hits.Metadatas, meta)
		hits.Distances = append(hits.Distances, c.metric.DistanceFromScore(r.Score))
	}
	return hits, nil
}

// Ping verifies Qdrant is reachable, the collection exists and it was created
// with the configured distance. A missing collection is ErrNotFound.
func (c *Client) Ping(ctx context.Context) error {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(c.collection))
	err := c.doJSON(ctx, http.MethodGet, path, nil, &info, "collection_info")
	if isNotFound(err) {
		return domain.WrapError(domain.ErrNotFound, "qdrant ping", fmt.Errorf("collection %s does not exist", c.collection))
	}
	if err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "qdrant ping", err)
	}
	if got := info.Result.Config.Params.Vectors.Distance; got != "" && got != distanceName(c.metric) {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "qdrant ping",
			fmt.Errorf("collection %s uses %s distance, configured %s", c.collection, got, distanceName(c.metric)))
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": distanceName(c.metric),
		},
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(c.collection))
	err := c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "ensure_collection")

	// 409 if it already exists (depends on version/config).
	var statusErr *resilience.StatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}
	if err := c.ensurePayloadIndex(ctx); err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) ensurePayloadIndex(ctx context.Context) error {
	reqBody := map[string]any{
		"field_name":   PayloadAct,
		"field_schema": "keyword",
	}
	path := fmt.Sprintf("/collections/%s/index?wait=true", url.PathEscape(c.collection))
	return c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "ensure_index")
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
	}

	call := func(ctx context.Context) error {
		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := newRequest(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewStatusError(serviceName, operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	var err error
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, serviceName+"_"+operation, call, resilience.ClassifyHTTPError)
	}
	return resilience.WrapTemporary(serviceName+" "+operation, err, resilience.ClassifyHTTPError)
}

func newRequest(ctx context.Context, method, target string, body *bytes.Reader) (*http.Request, error) {
	if body == nil {
		return http.NewRequestWithContext(ctx, method, target, nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func distanceName(metric domain.DistanceMetric) string {
	switch metric {
	case domain.DistanceDot:
		return "Dot"
	case domain.DistanceEuclidean:
		return "Euclid"
	default:
		return "Cosine"
	}
}

func isNotFound(err error) bool {
	var statusErr *resilience.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
