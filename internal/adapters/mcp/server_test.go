package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

type queryFake struct {
	err  error
	seen domain.QueryRequest
}

func (f *queryFake) AnswerQuery(_ context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	f.seen = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.QueryResult{
		Query: req.Query,
		Candidates: []domain.Candidate{
			{Act: "Employment Act", Section: "29 – Maternity leave", Text: "A female employee shall be entitled...", FusedScore: 0.91, Rank: 1},
			{Act: "Employment Act", Section: "28 – Annual leave", Text: "An employee shall be entitled...", FusedScore: 0.4, Rank: 2},
		},
		Scope: domain.Scope{Mode: domain.ScopeNarrow, Category: "Employment Act", Confidence: 0.82, Classified: true},
	}, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = searchTool
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected tool content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestSearchToolReturnsRankedPassages(t *testing.T) {
	queries := &queryFake{}
	s := NewServer(queries, "test")

	res, err := s.handleSearch(context.Background(), callRequest(map[string]any{
		"query":    "how long is maternity leave",
		"category": "Employment Act",
		"top_k":    2,
	}))
	if err != nil {
		t.Fatalf("handleSearch: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if queries.seen.CategoryOverride != "Employment Act" || queries.seen.TopKReturn != 2 {
		t.Fatalf("request not forwarded: %+v", queries.seen)
	}

	var out searchOutput
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(out.Results) != 2 || out.Results[0].Section != "29 – Maternity leave" || out.Scope.Mode != domain.ScopeNarrow {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestSearchToolDefaultsTopK(t *testing.T) {
	queries := &queryFake{}
	s := NewServer(queries, "test")

	if _, err := s.handleSearch(context.Background(), callRequest(map[string]any{"query": "q"})); err != nil {
		t.Fatalf("handleSearch: %v", err)
	}
	if queries.seen.TopKReturn != defaultTopK {
		t.Fatalf("expected default top_k %d, got %d", defaultTopK, queries.seen.TopKReturn)
	}
}

func TestSearchToolRejectsBadArguments(t *testing.T) {
	s := NewServer(&queryFake{}, "test")

	for name, args := range map[string]map[string]any{
		"missing query": {},
		"blank query":   {"query": "  "},
		"top_k too big": {"query": "q", "top_k": 500},
	} {
		res, err := s.handleSearch(context.Background(), callRequest(args))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if !res.IsError {
			t.Fatalf("%s: expected tool error", name)
		}
	}
}

func TestSearchToolSurfacesPipelineErrors(t *testing.T) {
	s := NewServer(&queryFake{err: domain.WrapError(domain.ErrCollaboratorUnavailable, "embed", errors.New("down"))}, "test")

	res, err := s.handleSearch(context.Background(), callRequest(map[string]any{"query": "q"}))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "collaborator unavailable") {
		t.Fatalf("expected collaborator error in tool result")
	}
}
