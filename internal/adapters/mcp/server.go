package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const (
	serverName  = "legal-retrieval"
	searchTool  = "search_law"
	defaultTopK = 5
	maxTopK     = 50
)

// Server exposes the query pipeline as an MCP tool.
type Server struct {
	queries ports.QueryService
	server  *server.MCPServer
}

func NewServer(queries ports.QueryService, version string) *Server {
	s := &Server{
		queries: queries,
		server:  server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}
	s.server.AddTool(mcp.NewTool(searchTool,
		mcp.WithDescription("Search statutory text and return the most relevant sections, ranked."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Legal question in natural language")),
		mcp.WithString("category", mcp.Description("Act name to restrict the search to")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to return (default 5)")),
	), s.handleSearch)
	return s
}

// ServeStdio blocks serving JSON-RPC over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}

type searchResult struct {
	Rank            int     `json:"rank"`
	Act             string  `json:"act"`
	Section         string  `json:"section"`
	Text            string  `json:"text"`
	SimilarityScore float64 `json:"similarity_score"`
	RerankScore     float64 `json:"rerank_score"`
	FusedScore      float64 `json:"fused_score"`
}

type searchOutput struct {
	Scope          domain.Scope   `json:"scope"`
	RerankDegraded bool           `json:"rerank_degraded"`
	Results        []searchResult `json:"results"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	topK := req.GetInt("top_k", defaultTopK)
	if topK <= 0 || topK > maxTopK {
		return mcp.NewToolResultError(fmt.Sprintf("top_k must be between 1 and %d", maxTopK)), nil
	}

	result, err := s.queries.AnswerQuery(ctx, domain.QueryRequest{
		Query:            query,
		CategoryOverride: req.GetString("category", ""),
		TopKReturn:       topK,
	})
	if err != nil {
		slog.WarnContext(ctx, "mcp_search_failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := searchOutput{
		Scope:          result.Scope,
		RerankDegraded: result.RerankDegraded,
		Results:        make([]searchResult, 0, len(result.Candidates)),
	}
	for _, c := range result.Candidates {
		out.Results = append(out.Results, searchResult{
			Rank:            c.Rank,
			Act:             c.Act,
			Section:         c.Section,
			Text:            c.Text,
			SimilarityScore: c.SimilarityScore,
			RerankScore:     c.RerankScore,
			FusedScore:      c.FusedScore,
		})
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal search output: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
