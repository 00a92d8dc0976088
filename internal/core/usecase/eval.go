package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const evalAnswerChars = 900

// EvalUseCase replays a question set through the query pipeline and writes a
// report of top-1 outcomes.
type EvalUseCase struct {
	queries ports.QueryService
	reports ports.ReportWriter
}

func NewEvalUseCase(queries ports.QueryService, reports ports.ReportWriter) *EvalUseCase {
	return &EvalUseCase{queries: queries, reports: reports}
}

// ReadEvalCases parses question[,act] rows. A header row starting with
// "question" is skipped, as are blank questions.
func ReadEvalCases(r io.Reader) ([]domain.EvalCase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var cases []domain.EvalCase
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read eval cases", err)
		}
		if len(record) == 0 {
			continue
		}
		question := strings.TrimSpace(record[0])
		if line == 1 && strings.EqualFold(question, "question") {
			continue
		}
		if question == "" {
			continue
		}
		c := domain.EvalCase{Question: question}
		if len(record) > 1 {
			c.Act = strings.TrimSpace(record[1])
		}
		cases = append(cases, c)
	}
	if len(cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read eval cases", errors.New("no questions"))
	}
	return cases, nil
}

// Run answers every case in order. A failing question becomes a row with its
// error rather than aborting the run.
func (uc *EvalUseCase) Run(ctx context.Context, cases []domain.EvalCase, topK int) ([]domain.EvalRow, error) {
	rows := make([]domain.EvalRow, 0, len(cases))
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		rows = append(rows, uc.evaluate(ctx, c, topK))
	}
	return rows, nil
}

func (uc *EvalUseCase) evaluate(ctx context.Context, c domain.EvalCase, topK int) domain.EvalRow {
	row := domain.EvalRow{Question: c.Question, ExpectedAct: c.Act}
	started := time.Now()
	result, err := uc.queries.AnswerQuery(ctx, domain.QueryRequest{Query: c.Question, TopKReturn: topK})
	row.LatencyMS = domain.Millis(time.Since(started))
	if err != nil {
		row.Error = err.Error()
		return row
	}
	if len(result.Candidates) == 0 {
		row.Error = "no results"
		return row
	}

	top := result.Candidates[0]
	row.TopAct = top.Act
	row.TopSection = top.Section
	row.Similarity = top.SimilarityScore
	row.FusedScore = top.FusedScore
	row.Answer = trimAnswer(top.Text)
	row.ChunkID = top.ID
	if c.Act != "" {
		row.Hit = strings.EqualFold(strings.TrimSpace(top.Act), c.Act)
	}
	return row
}

// RunAndWrite evaluates cases and writes the report to path.
func (uc *EvalUseCase) RunAndWrite(ctx context.Context, cases []domain.EvalCase, topK int, path string) ([]domain.EvalRow, error) {
	rows, err := uc.Run(ctx, cases, topK)
	if err != nil {
		return rows, err
	}
	if err := uc.reports.WriteEval(ctx, path, rows); err != nil {
		return rows, fmt.Errorf("write eval report: %w", err)
	}
	return rows, nil
}

func trimAnswer(text string) string {
	runes := []rune(text)
	if len(runes) <= evalAnswerChars {
		return text
	}
	return string(runes[:evalAnswerChars]) + "..."
}
