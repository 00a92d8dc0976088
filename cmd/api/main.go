package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/uhaki/legal-retrieval/internal/adapters/http"
	"github.com/uhaki/legal-retrieval/internal/bootstrap"
	"github.com/uhaki/legal-retrieval/internal/config"
	"github.com/uhaki/legal-retrieval/internal/observability/logging"
	"github.com/uhaki/legal-retrieval/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Dependencies:      httpMetrics.DependencyMetrics,
		QueryObserver:     httpMetrics.RetrievalMetrics,
		RequireCollection: true,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	checks := make(map[string]httpadapter.HealthChecker, len(app.HealthChecks))
	for name, check := range app.HealthChecks {
		checks[name] = check
	}

	router := httpadapter.NewRouter(cfg, app.QueryUC, httpMetrics, checks).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Duration(cfg.QueryTimeoutSeconds)*time.Second + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
