package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querypilot/querypilot/internal/auth"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/fixture"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/querylog"
)

type ReadinessCheck func(ctx context.Context) error

type QueryService interface {
	Ask(ctx context.Context, question string) (pipeline.Answer, error)
	Translate(ctx context.Context, question string) (pipeline.Translation, error)
	Stats() querylog.Stats
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Queries           QueryService
	Schema            []fixture.Table
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeDetail(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	protected.HandleFunc("POST /query/translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})
	protected.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(deps, w, r)
	})
	protected.HandleFunc("GET /schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeDetail(w, http.StatusInternalServerError, "auth middleware is required by configuration")
			})
		} else {
			protectedHandler = deps.AuthMiddleware(auth.RequireRole(auth.RoleQueryReader, protectedHandler))
		}
	}
	mux.Handle("POST /query", protectedHandler)
	mux.Handle("POST /query/translate", protectedHandler)
	mux.Handle("GET /stats", protectedHandler)
	mux.Handle("GET /schema", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.RecoverMiddleware(deps.Logger),
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// PingCheck reports the store as ready when ping succeeds.
func PingCheck(ping func(ctx context.Context) error) ReadinessCheck {
	if ping == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return ping(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
