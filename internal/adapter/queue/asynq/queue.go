// Package asynqadp adapts the hibiken/asynq client and server to the
// engine's queue port.
package asynqadp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/talentforge/matching-engine/internal/adapter/observability"
	"github.com/talentforge/matching-engine/internal/domain"
)

// TaskMatch is the task type of one matching run.
const TaskMatch = "match_run"

// Queue enqueues matching runs onto Redis.
type Queue struct{ client *asynq.Client }

// New builds a queue client from a Redis URL.
func New(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// EnqueueMatch enqueues one matching run. Runs are never retried by the
// queue: a failed run surfaces as matching_status=failed and the recruiter
// re-triggers explicitly.
func (q *Queue) EnqueueMatch(ctx domain.Context, payload domain.MatchTaskPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	t := asynq.NewTask(TaskMatch, b)
	info, err := q.client.EnqueueContext(ctx, t, asynq.MaxRetry(0), asynq.Retention(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	observability.EnqueueRun()
	return info.ID, nil
}

// Close releases the underlying Redis connections.
func (q *Queue) Close() error { return q.client.Close() }
