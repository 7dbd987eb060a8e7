package asynqadp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talentforge/matching-engine/internal/adapter/observability"
	"github.com/talentforge/matching-engine/internal/domain"
)

// RunExecutor executes one matching run end to end. Implemented by
// usecase.RunService.
type RunExecutor interface {
	Execute(ctx domain.Context, payload domain.MatchTaskPayload) error
}

// Worker consumes matching run tasks from Redis.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds the asynq server and wires the match_run handler.
func NewWorker(redisURL string, concurrency int, runs RunExecutor) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	srv := asynq.NewServer(opt, asynq.Config{Concurrency: concurrency})
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskMatch, func(ctx context.Context, t *asynq.Task) error {
		tracer := otel.Tracer("queue.worker")
		ctx, span := tracer.Start(ctx, "MatchRun")
		defer span.End()

		var p domain.MatchTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			slog.Error("dropping undecodable match task", slog.Any("error", err))
			return nil
		}
		span.SetAttributes(
			attribute.String("match.run_id", p.RunID),
			attribute.String("match.job_id", p.JobID),
		)
		observability.StartProcessingRun()
		if err := runs.Execute(ctx, p); err != nil {
			observability.FailRun()
			slog.Error("match run failed",
				slog.String("run_id", p.RunID),
				slog.String("job_id", p.JobID),
				slog.Any("error", err))
			return err
		}
		observability.CompleteRun()
		return nil
	})

	return &Worker{server: srv, mux: mux}, nil
}

// Start begins consuming tasks; it does not block.
func (w *Worker) Start() error { return w.server.Start(w.mux) }

// Stop drains in-flight tasks and shuts the server down.
func (w *Worker) Stop() { w.server.Shutdown() }
