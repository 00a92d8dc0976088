package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

const snippetRunes = 240

func newQueryCommand(load Loader) *cobra.Command {
	var (
		category string
		topK     int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Retrieve and rank passages for a legal question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := load(cmd.Context(), true)
			if err != nil {
				return err
			}
			if svc.Queries == nil {
				return errNotConfigured
			}

			result, err := svc.Queries.AnswerQuery(cmd.Context(), domain.QueryRequest{
				Query:            args[0],
				CategoryOverride: category,
				TopKReturn:       topK,
			})
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			if asJSON {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal result: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict the search to one act")
	cmd.Flags().IntVarP(&topK, "top-k", "n", 5, "number of passages to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the full result as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, result *domain.QueryResult) {
	scope := result.Scope
	switch scope.Mode {
	case domain.ScopeCorpus:
		cmd.Printf("Scope: all acts")
		if scope.PredictedCategory != "" {
			cmd.Printf(" (predicted %s at %.2f)", scope.PredictedCategory, scope.Confidence)
		}
		cmd.Println()
	default:
		cmd.Printf("Scope: %s (%s)\n", scope.Category, scope.Mode)
	}
	if result.RerankDegraded {
		cmd.Println("Reranker unavailable: similarity order shown.")
	}

	if len(result.Candidates) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println()
	for _, c := range result.Candidates {
		cmd.Printf("  [%d] %s, s. %s (%.3f)\n", c.Rank, c.Act, c.Section, c.FusedScore)
		cmd.Printf("      %s\n\n", snippet(c.Text))
	}
	cmd.Printf("%.1f ms\n", result.Timings.TotalMS)
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "..."
}
