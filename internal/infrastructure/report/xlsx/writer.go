package xlsx

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var header = []any{
	"question", "expected_act", "top_act", "top_section", "similarity", "fused_score",
	"answer", "chunk_id", "hit", "latency_ms", "error",
}

// Writer stores evaluation rows as an .xlsx workbook with a results sheet and
// a summary sheet.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteEval(ctx context.Context, path string, rows []domain.EvalRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var hits, scored, failed int
	var latency float64
	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		values := []any{
			r.Question, r.ExpectedAct, r.TopAct, r.TopSection, r.Similarity, r.FusedScore,
			r.Answer, r.ChunkID, r.Hit, r.LatencyMS, r.Error,
		}
		if err := f.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}

		latency += r.LatencyMS
		if r.Error != "" {
			failed++
			continue
		}
		if r.ExpectedAct != "" {
			scored++
			if r.Hit {
				hits++
			}
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]any{
		{"questions", len(rows)},
		{"failed", failed},
		{"with_expected_act", scored},
		{"top1_hits", hits},
		{"top1_accuracy", ratio(hits, scored)},
		{"mean_latency_ms", mean(latency, len(rows))},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
