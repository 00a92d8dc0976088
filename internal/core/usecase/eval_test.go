package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

type queryServiceFake struct {
	results map[string]*domain.QueryResult
	err     error
}

func (f *queryServiceFake) AnswerQuery(_ context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[req.Query]; ok {
		return res, nil
	}
	return &domain.QueryResult{Query: req.Query, Candidates: []domain.Candidate{}}, nil
}

type reportWriterFake struct {
	path string
	rows []domain.EvalRow
}

func (f *reportWriterFake) WriteEval(_ context.Context, path string, rows []domain.EvalRow) error {
	f.path = path
	f.rows = rows
	return nil
}

func TestReadEvalCasesSkipsHeaderAndBlanks(t *testing.T) {
	input := "question,act\nWhat is annual leave?,Employment Act\n,Children Act\n\"Who is a child?\"\n"
	cases, err := ReadEvalCases(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadEvalCases() error = %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %+v", cases)
	}
	if cases[0].Act != "Employment Act" || cases[1].Act != "" {
		t.Fatalf("unexpected acts %+v", cases)
	}
}

func TestReadEvalCasesRejectsEmptySet(t *testing.T) {
	if _, err := ReadEvalCases(strings.NewReader("question\n")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestEvalRunRecordsTopOneOutcome(t *testing.T) {
	long := strings.Repeat("x", 1000)
	queries := &queryServiceFake{results: map[string]*domain.QueryResult{
		"annual leave": {Candidates: []domain.Candidate{{
			ID: "abc", Act: "Employment Act", Section: "28 – Annual leave",
			Text: long, SimilarityScore: 0.81, FusedScore: 0.9,
		}}},
	}}
	reports := &reportWriterFake{}
	uc := NewEvalUseCase(queries, reports)

	cases := []domain.EvalCase{
		{Question: "annual leave", Act: "employment act"},
		{Question: "unknown question", Act: "Children Act"},
	}
	rows, err := uc.RunAndWrite(context.Background(), cases, 5, "out.xlsx")
	if err != nil {
		t.Fatalf("RunAndWrite() error = %v", err)
	}
	if reports.path != "out.xlsx" || len(reports.rows) != 2 {
		t.Fatalf("unexpected report write path=%q rows=%d", reports.path, len(reports.rows))
	}

	hit := rows[0]
	if !hit.Hit || hit.TopSection != "28 – Annual leave" || hit.ChunkID != "abc" || hit.Similarity != 0.81 {
		t.Fatalf("unexpected row %+v", hit)
	}
	if len(hit.Answer) != 903 || !strings.HasSuffix(hit.Answer, "...") {
		t.Fatalf("expected answer trimmed to 900 chars, got %d", len(hit.Answer))
	}
	if rows[1].Hit || rows[1].Error != "no results" {
		t.Fatalf("unexpected miss row %+v", rows[1])
	}
}

func TestEvalRunKeepsPerRowErrors(t *testing.T) {
	uc := NewEvalUseCase(&queryServiceFake{err: errors.New("qdrant down")}, &reportWriterFake{})
	rows, err := uc.Run(context.Background(), []domain.EvalCase{{Question: "q"}}, 5)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rows[0].Error != "qdrant down" {
		t.Fatalf("expected row error, got %+v", rows[0])
	}
}
