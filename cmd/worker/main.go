// Command worker consumes matching run tasks from the Redis queue.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	ai "github.com/talentforge/matching-engine/internal/adapter/ai"
	"github.com/talentforge/matching-engine/internal/adapter/observability"
	asynqadp "github.com/talentforge/matching-engine/internal/adapter/queue/asynq"
	"github.com/talentforge/matching-engine/internal/adapter/repo/postgres"
	"github.com/talentforge/matching-engine/internal/app"
	"github.com/talentforge/matching-engine/internal/config"
	"github.com/talentforge/matching-engine/internal/match"
	"github.com/talentforge/matching-engine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	// Dedicated /metrics endpoint so Prometheus can scrape run metrics from
	// the worker process.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	postingRepo := postgres.NewPostingRepo(pool)
	candidateRepo := postgres.NewCandidateRepo(pool)
	statsRepo := postgres.NewStatsRepo(pool)

	aicl := ai.New(cfg)
	if !aicl.Enabled() {
		slog.Warn("completion API key not set; semantic scoring runs in neutral fallback mode")
	}
	matcher := match.NewSemanticMatcher(aicl)

	runSvc := usecase.NewRunService(postingRepo, candidateRepo, statsRepo, matcher,
		cfg.CandidatePoolLimit, cfg.TierOneMinScore, cfg.TierOneLimit, cfg.ResultLimit)

	worker, err := asynqadp.NewWorker(cfg.RedisURL, cfg.WorkerConcurrency, runSvc)
	if err != nil {
		slog.Error("worker init failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := worker.Start(); err != nil {
		slog.Error("worker start failed", slog.Any("error", err))
		os.Exit(1)
	}

	sweeper := app.NewStuckRunSweeper(postingRepo, cfg.StuckRunMaxAge, cfg.StuckRunSweepInterval)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go sweeper.Run(sweepCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutdown signal received", slog.String("signal", sig.String()))

	stopSweeper()
	worker.Stop()
}
