package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uhaki/legal-retrieval/internal/config"
	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

func TestNewCorpusWiresOfflineServices(t *testing.T) {
	app, err := NewCorpus(context.Background(), config.Config{
		StoragePath:    t.TempDir(),
		ChunkMaxTokens: 220,
	})
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	defer app.Close()

	if app.CorpusUC == nil || app.Storage == nil || app.Catalog == nil {
		t.Fatalf("expected corpus services to be wired")
	}
	if app.QueryUC != nil || app.IndexUC != nil {
		t.Fatalf("offline app must not wire the retrieval pipeline")
	}
	if app.Audit != nil {
		t.Fatalf("audit must stay off unless enabled")
	}
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	cases := map[string]config.Config{
		"embed provider": {EmbedProvider: "bogus", VectorDistance: "cosine"},
		"distance":       {EmbedProvider: "ollama", VectorDistance: "manhattan"},
	}
	for name, cfg := range cases {
		cfg.StoragePath = t.TempDir()
		if _, err := New(context.Background(), cfg, Options{}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestBreakerCheckReportsOpenBreakers(t *testing.T) {
	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})
	check := breakerCheck{executor: exec}
	if err := check.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy breakers, got %v", err)
	}

	_ = exec.Execute(context.Background(), "qdrant.query", func(context.Context) error {
		return errors.New("connection refused")
	}, nil)

	err := check.Ping(context.Background())
	if err == nil || !strings.Contains(err.Error(), "qdrant.query:open") {
		t.Fatalf("expected open breaker to be reported, got %v", err)
	}
}

type pingerFake struct{ err error }

func (f pingerFake) Ping(context.Context) error { return f.err }

func TestCheckVectorStoreMissingCollection(t *testing.T) {
	missing := pingerFake{err: domain.WrapError(domain.ErrNotFound, "qdrant ping", errors.New("collection acts does not exist"))}

	if err := checkVectorStore(context.Background(), missing, true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing collection to fail a query service, got %v", err)
	}
	if err := checkVectorStore(context.Background(), missing, false); err != nil {
		t.Fatalf("expected index writers to tolerate a missing collection, got %v", err)
	}
	down := pingerFake{err: domain.WrapError(domain.ErrCollaboratorUnavailable, "qdrant ping", errors.New("refused"))}
	if err := checkVectorStore(context.Background(), down, false); err == nil {
		t.Fatalf("expected unreachable store to fail startup")
	}
}
