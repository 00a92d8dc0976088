package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uhaki/legal-retrieval/internal/core/usecase"
)

func newEvalCommand(load Loader) *cobra.Command {
	var (
		out  string
		topK int
	)

	cmd := &cobra.Command{
		Use:   "eval [questions.csv]",
		Short: "Run an evaluation set and write an xlsx report",
		Long: `Reads a CSV of question[,act] rows, answers each question, and writes the
top passage per question to an Excel report. Rows with an expected act are
scored as a hit when the top passage comes from that act.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open questions: %w", err)
			}
			defer f.Close()

			cases, err := usecase.ReadEvalCases(f)
			if err != nil {
				return err
			}

			svc, err := load(cmd.Context(), true)
			if err != nil {
				return err
			}
			if svc.Eval == nil {
				return errNotConfigured
			}

			rows, err := svc.Eval.RunAndWrite(cmd.Context(), cases, topK, out)
			if err != nil {
				return err
			}

			var scored, hits, failed int
			for _, row := range rows {
				if row.Error != "" {
					failed++
				}
				if row.ExpectedAct != "" {
					scored++
					if row.Hit {
						hits++
					}
				}
			}
			cmd.Printf("%d questions, %d errors\n", len(rows), failed)
			if scored > 0 {
				cmd.Printf("top-1 act accuracy: %d/%d (%.1f%%)\n", hits, scored, 100*float64(hits)/float64(scored))
			}
			cmd.Printf("report written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "eval_report.xlsx", "report path")
	cmd.Flags().IntVarP(&topK, "top-k", "n", 5, "passages retrieved per question")
	return cmd
}
