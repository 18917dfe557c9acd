package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/querypilot/querypilot/internal/api"
	"github.com/querypilot/querypilot/internal/auth"
	"github.com/querypilot/querypilot/internal/bootstrap"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/fixture"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/query/sqldb"
	"github.com/querypilot/querypilot/internal/querylog"
	"github.com/querypilot/querypilot/internal/sqlguard"
	"github.com/querypilot/querypilot/internal/store"
)

func main() {
	cfg, err := config.LoadFromEnv("querypilot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, dialect, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to prepare store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	translator, err := nl2sql.NewFromConfig(cfg.AI)
	switch {
	case errors.Is(err, nl2sql.ErrNotConfigured):
		logger.Warn("no AI API key configured; /query will reject questions", slog.String("provider", cfg.AI.Provider))
		translator = nil
	case err != nil:
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}

	schema := fixture.Tables()
	service := &pipeline.Service{
		Translator: translator,
		Guard:      sqlguard.New(fixture.TableNames()...),
		Executor:   sqldb.NewExecutor(db),
		Log:        querylog.New(),
		Logger:     logger,
		Dialect:    dialect.Driver,
		Schema:     schema,
	}

	deps := api.Dependencies{
		Logger:  logger,
		Queries: service,
		Schema:  schema,
		Readiness: api.CombineReadinessChecks(
			api.PingCheck(func(ctx context.Context) error { return store.Ping(ctx, db) }),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("driver", dialect.Driver),
			slog.Bool("translator", translator != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
