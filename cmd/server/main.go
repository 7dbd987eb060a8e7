// Command server starts the matching engine HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ai "github.com/talentforge/matching-engine/internal/adapter/ai"
	httpserver "github.com/talentforge/matching-engine/internal/adapter/httpserver"
	"github.com/talentforge/matching-engine/internal/adapter/observability"
	asynqadp "github.com/talentforge/matching-engine/internal/adapter/queue/asynq"
	"github.com/talentforge/matching-engine/internal/adapter/repo/postgres"
	"github.com/talentforge/matching-engine/internal/app"
	"github.com/talentforge/matching-engine/internal/config"
	"github.com/talentforge/matching-engine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.DBURL); err != nil {
			slog.Error("migrations failed", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("migrations applied")
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	postingRepo := postgres.NewPostingRepo(pool)
	candidateRepo := postgres.NewCandidateRepo(pool)
	statsRepo := postgres.NewStatsRepo(pool)

	queue, err := asynqadp.New(cfg.RedisURL)
	if err != nil {
		slog.Error("queue connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			slog.Error("failed to close queue client", slog.Any("error", err))
		}
	}()

	aicl := ai.New(cfg)
	if !aicl.Enabled() {
		slog.Warn("completion API key not set; semantic scoring runs in neutral fallback mode")
	}

	matchSvc := usecase.NewMatchService(postingRepo, queue)
	scoreSvc := usecase.NewScoreService(postingRepo, candidateRepo, statsRepo)

	rdb, err := app.NewRedisClient(cfg.RedisURL)
	if err != nil {
		slog.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()
	dbCheck, redisCheck := app.BuildReadinessChecks(pool, app.GoRedis{C: rdb})

	srv := httpserver.NewServer(cfg, matchSvc, scoreSvc, dbCheck, redisCheck, aicl.Enabled)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
