package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const DefaultConfidenceThreshold = 0.6

// QueryRouter decides whether a query searches one act or the whole corpus.
type QueryRouter struct {
	classifier ports.Classifier
	catalog    ports.ActCatalog
	threshold  float64
}

// NewQueryRouter builds a router. classifier and catalog may be nil: without a
// classifier every query is corpus-wide, without a catalog labels are used
// verbatim.
func NewQueryRouter(classifier ports.Classifier, catalog ports.ActCatalog, threshold float64) *QueryRouter {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &QueryRouter{
		classifier: classifier,
		catalog:    catalog,
		threshold:  threshold,
	}
}

func (r *QueryRouter) Threshold() float64 {
	return r.threshold
}

// Route returns the scope for query. A caller override always wins and skips
// the classifier. Classifier failures degrade to corpus-wide search.
func (r *QueryRouter) Route(ctx context.Context, query, override string) domain.Scope {
	if override = strings.TrimSpace(override); override != "" {
		return domain.Scope{Category: r.canonical(override), Mode: domain.ScopeOverride}
	}
	if r.classifier == nil {
		return domain.Scope{Mode: domain.ScopeCorpus}
	}

	cls, err := r.classifier.Classify(ctx, query)
	if err != nil {
		slog.WarnContext(ctx, "classifier_degraded", "error", err)
		return domain.Scope{Mode: domain.ScopeCorpus, ClassifierDegraded: true}
	}

	label := r.canonical(cls.Label)
	scope := domain.Scope{
		Mode:              domain.ScopeCorpus,
		PredictedCategory: label,
		Confidence:        cls.Confidence,
		Classified:        label != "",
	}
	if label != "" && cls.Confidence >= r.threshold {
		scope.Category = label
		scope.Mode = domain.ScopeNarrow
	}
	return scope
}

func (r *QueryRouter) canonical(label string) string {
	label = strings.TrimSpace(label)
	if label == "" || r.catalog == nil {
		return label
	}
	if name, ok := r.catalog.Canonical(label); ok {
		return name
	}
	return label
}
