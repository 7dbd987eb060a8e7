// Package usecase contains the application services of the matching engine.
package usecase

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talentforge/matching-engine/internal/domain"
)

// MatchService triggers matching runs and reports their status.
type MatchService struct {
	Postings domain.PostingRepository
	Queue    domain.Queue
}

// NewMatchService wires a MatchService.
func NewMatchService(postings domain.PostingRepository, queue domain.Queue) MatchService {
	return MatchService{Postings: postings, Queue: queue}
}

// TriggerOutcome reports what a trigger call did. Accepted means a new run
// was enqueued; CacheHit means the stored results were still valid and no
// run was needed.
type TriggerOutcome struct {
	JobID    string
	Status   domain.MatchStatus
	Accepted bool
	CacheHit bool
}

// Trigger starts a matching run for a published posting. With force unset the
// call short-circuits when the stored cache key still matches the posting's
// current content. Admission is a compare-and-set claim, so concurrent
// triggers collapse into one run.
func (s MatchService) Trigger(ctx domain.Context, jobID string, force bool) (TriggerOutcome, error) {
	p, err := s.Postings.Get(ctx, jobID)
	if err != nil {
		return TriggerOutcome{}, err
	}
	if p.Status != domain.PostingPublished {
		return TriggerOutcome{}, fmt.Errorf("%w: posting %s is not published", domain.ErrInvalidArgument, jobID)
	}

	if !force && p.MatchStatus == domain.MatchCompleted &&
		p.CacheKey != "" && p.CacheKey == domain.MatchCacheKey(p.Description, p.Requirements) {
		slog.Info("match trigger served from cache", slog.String("job_id", jobID))
		return TriggerOutcome{JobID: jobID, Status: domain.MatchCompleted, CacheHit: true}, nil
	}

	claimed, err := s.Postings.ClaimForMatching(ctx, jobID)
	if err != nil {
		return TriggerOutcome{}, err
	}
	if !claimed {
		// Another run holds the claim; report its state and do nothing.
		return TriggerOutcome{JobID: jobID, Status: domain.MatchProcessing}, nil
	}

	payload := domain.MatchTaskPayload{RunID: uuid.New().String(), JobID: jobID}
	taskID, err := s.Queue.EnqueueMatch(ctx, payload)
	if err != nil {
		if markErr := s.Postings.MarkMatchFailed(ctx, jobID, "enqueue failed: "+err.Error()); markErr != nil {
			slog.Error("failed to mark posting after enqueue error",
				slog.String("job_id", jobID), slog.Any("error", markErr))
		}
		return TriggerOutcome{}, fmt.Errorf("op=match.trigger: %w", err)
	}
	slog.Info("match run enqueued",
		slog.String("job_id", jobID),
		slog.String("run_id", payload.RunID),
		slog.String("task_id", taskID),
		slog.Bool("force", force))
	return TriggerOutcome{JobID: jobID, Status: domain.MatchProcessing, Accepted: true}, nil
}

// Status returns the posting's matching state for polling, including the
// cached result list when the last run completed.
func (s MatchService) Status(ctx domain.Context, jobID string) (domain.JobPosting, error) {
	return s.Postings.Get(ctx, jobID)
}
