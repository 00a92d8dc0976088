package domain

import "time"

// IndexStats summarizes one act's index run.
type IndexStats struct {
	Act      string        `json:"act"`
	Chunks   int           `json:"chunks"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

// IndexReport collects per-act outcomes of a corpus run. A failed act does not
// stop the others.
type IndexReport struct {
	Indexed []IndexStats      `json:"indexed"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func (r IndexReport) TotalChunks() int {
	total := 0
	for _, s := range r.Indexed {
		total += s.Chunks
	}
	return total
}

// EvalCase is one question from an evaluation set. Act is optional.
type EvalCase struct {
	Question string
	Act      string
}

// EvalRow is the evaluated outcome of one EvalCase.
type EvalRow struct {
	Question    string
	ExpectedAct string
	TopAct      string
	TopSection  string
	Similarity  float64
	FusedScore  float64
	Answer      string
	ChunkID     string
	Hit         bool
	LatencyMS   float64
	Error       string
}
