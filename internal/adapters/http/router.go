package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/uhaki/legal-retrieval/internal/config"
	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/core/ports"
)

const (
	healthCheckTimeout = 2 * time.Second
	maxTopK            = 100
)

// HealthChecker is any collaborator that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// MetricsProvider instruments requests and exposes /metrics.
type MetricsProvider interface {
	Middleware(service string, next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	cfg     config.Config
	queries ports.QueryService
	metrics MetricsProvider
	checks  map[string]HealthChecker
}

func NewRouter(cfg config.Config, queries ports.QueryService, metrics MetricsProvider, checks map[string]HealthChecker) *Router {
	return &Router{
		cfg:     cfg,
		queries: queries,
		metrics: metrics,
		checks:  checks,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware("api", next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)
	r.With(
		func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		},
		func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIBackpressureMax, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
		},
	).Post("/v1/search", rt.search)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(rt.checks))
	for name, check := range rt.checks {
		if err := check.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "dependencies": deps})
}

type searchRequest struct {
	Query        string `json:"query"`
	Category     string `json:"category"`
	TopKRetrieve int    `json:"top_k_retrieve"`
	TopKReturn   int    `json:"top_k_return"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIRequestMaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIRequestMaxBodyBytes)
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopKRetrieve < 0 || req.TopKReturn < 0 || req.TopKRetrieve > maxTopK || req.TopKReturn > maxTopK {
		writeError(w, http.StatusBadRequest, "top_k values must be between 0 and 100")
		return
	}

	result, err := rt.queries.AnswerQuery(r.Context(), domain.QueryRequest{
		Query:            req.Query,
		CategoryOverride: req.Category,
		TopKRetrieve:     req.TopKRetrieve,
		TopKReturn:       req.TopKReturn,
	})
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		slog.WarnContext(r.Context(), "search_failed",
			"status", status,
			"error", err,
		)
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
