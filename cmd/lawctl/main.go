package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/uhaki/legal-retrieval/internal/adapters/cli"
	mcpadapter "github.com/uhaki/legal-retrieval/internal/adapters/mcp"
	"github.com/uhaki/legal-retrieval/internal/bootstrap"
	"github.com/uhaki/legal-retrieval/internal/config"
	"github.com/uhaki/legal-retrieval/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout belongs to command output and the MCP transport.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "lawctl", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *bootstrap.App
	defer func() {
		if app != nil {
			app.Close()
		}
	}()

	load := func(ctx context.Context, pipeline bool) (*cli.Services, error) {
		var err error
		if pipeline {
			app, err = bootstrap.New(ctx, cfg, bootstrap.Options{})
		} else {
			app, err = bootstrap.NewCorpus(ctx, cfg)
		}
		if err != nil {
			return nil, err
		}

		svc := &cli.Services{
			Corpus: app.CorpusUC,
			Chunks: app.Storage.Chunks(),
		}
		if app.Audit != nil {
			svc.Audit = app.Audit
		}
		if cfg.NATSURL != "" {
			svc.Queue = lazyQueue{app: app}
		}
		if pipeline {
			svc.Indexer = app.IndexUC
			svc.Queries = app.QueryUC
			svc.Eval = app.EvalUC
			svc.ServeMCP = func(context.Context) error {
				return mcpadapter.NewServer(app.QueryUC, version).ServeStdio()
			}
		}
		return svc, nil
	}

	if err := cli.NewRootCommand(load).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// lazyQueue defers the NATS connection until a job is actually published.
type lazyQueue struct {
	app *bootstrap.App
}

func (q lazyQueue) PublishIndexAct(ctx context.Context, act string) error {
	queue, err := q.app.Queue()
	if err != nil {
		return err
	}
	return queue.PublishIndexAct(ctx, act)
}

func (q lazyQueue) SubscribeIndexAct(ctx context.Context, handler func(context.Context, string) error) error {
	queue, err := q.app.Queue()
	if err != nil {
		return err
	}
	return queue.SubscribeIndexAct(ctx, handler)
}
