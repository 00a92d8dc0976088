package domain

import (
	"fmt"
	"math"
	"time"
)

type EmbedRole string

const (
	RoleQuery   EmbedRole = "query"
	RolePassage EmbedRole = "passage"
)

type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type ScorePair struct {
	Query string
	Text  string
}

type SearchFilter struct {
	Act string
}

// QueryHits mirrors the vector store query contract: positionally aligned lists.
type QueryHits struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}

func (h QueryHits) Len() int {
	return len(h.IDs)
}

type ScopeMode string

const (
	ScopeOverride ScopeMode = "override"
	ScopeNarrow   ScopeMode = "narrow"
	ScopeCorpus   ScopeMode = "corpus"
)

// Scope is the category restriction chosen for one query. An empty Category
// means corpus-wide search.
type Scope struct {
	Category           string    `json:"category,omitempty"`
	Mode               ScopeMode `json:"mode"`
	PredictedCategory  string    `json:"predicted_category,omitempty"`
	Confidence         float64   `json:"confidence"`
	Classified         bool      `json:"classified"`
	ClassifierDegraded bool      `json:"classifier_degraded,omitempty"`
}

func (s Scope) Filter() SearchFilter {
	return SearchFilter{Act: s.Category}
}

type Candidate struct {
	ID              string         `json:"id"`
	Text            string         `json:"text"`
	Act             string         `json:"act"`
	Section         string         `json:"section"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
	RerankScore     float64        `json:"rerank_score"`
	FusedScore      float64        `json:"fused_score"`
	Rank            int            `json:"rank"`
}

type StageTimings struct {
	RouteMS  float64 `json:"route_ms"`
	EmbedMS  float64 `json:"embed_ms"`
	SearchMS float64 `json:"search_ms"`
	RerankMS float64 `json:"rerank_ms"`
	TotalMS  float64 `json:"total_ms"`
}

func Millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

type QueryRequest struct {
	Query            string `json:"query"`
	CategoryOverride string `json:"category,omitempty"`
	TopKRetrieve     int    `json:"top_k_retrieve,omitempty"`
	TopKReturn       int    `json:"top_k_return,omitempty"`
}

type QueryResult struct {
	Query          string       `json:"query"`
	Candidates     []Candidate  `json:"candidates"`
	Timings        StageTimings `json:"timings"`
	Scope          Scope        `json:"scope"`
	RerankDegraded bool         `json:"rerank_degraded"`
}

// AuditRecord is the summary row handed to the audit log after each query.
type AuditRecord struct {
	RequestID         string
	Query             string
	Scope             ScopeMode
	Category          string
	PredictedCategory string
	Confidence        float64
	TopAct            string
	TopSection        string
	TopScore          float64
	ResultCount       int
	RerankDegraded    bool
	Timings           StageTimings
	CreatedAt         time.Time
}

// DistanceMetric pins how a vector store distance converts to a similarity.
type DistanceMetric string

const (
	DistanceCosine    DistanceMetric = "cosine"
	DistanceDot       DistanceMetric = "dot"
	DistanceEuclidean DistanceMetric = "euclidean"
)

// Similarity converts a distance into a similarity score. For cosine
// collections this is 1 - d; the conversion is metric specific.
func (m DistanceMetric) Similarity(distance float64) float64 {
	switch m {
	case DistanceDot:
		return -distance
	case DistanceEuclidean:
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance
	}
}

// DistanceFromScore converts a Qdrant search score into a distance. Cosine
// and dot scores grow with relevance; Euclid scores are already distances.
func (m DistanceMetric) DistanceFromScore(score float64) float64 {
	switch m {
	case DistanceDot:
		return -score
	case DistanceEuclidean:
		return score
	default:
		return 1.0 - score
	}
}

func ParseDistanceMetric(s string) (DistanceMetric, error) {
	switch DistanceMetric(s) {
	case "", DistanceCosine:
		return DistanceCosine, nil
	case DistanceDot, DistanceEuclidean:
		return DistanceMetric(s), nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// SanitizeMetadata drops nil values and coerces non-primitive values to
// their string form.
func SanitizeMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case nil:
			continue
		case string, bool, int, int32, int64, float32, float64:
			out[k] = val
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// NormalizeL2 scales v to unit length in place. Zero vectors are left as is.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
