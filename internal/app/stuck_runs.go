package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talentforge/matching-engine/internal/domain"
)

// StuckRunSweeper fails matching runs that have been processing for too long,
// usually because a worker died mid-run. Without it a crashed run would pin
// its posting in processing forever and block re-triggering.
type StuckRunSweeper struct {
	postings domain.PostingRepository
	maxAge   time.Duration
	interval time.Duration
}

// NewStuckRunSweeper builds a sweeper; nil postings yields a nil sweeper
// whose Run is a no-op.
func NewStuckRunSweeper(postings domain.PostingRepository, maxAge, interval time.Duration) *StuckRunSweeper {
	if postings == nil {
		return nil
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckRunSweeper{postings: postings, maxAge: maxAge, interval: interval}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *StuckRunSweeper) Run(ctx context.Context) {
	if s == nil || s.postings == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck run sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckRunSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("app.sweeper")
	ctx, span := tracer.Start(ctx, "StuckRunSweeper.sweepOnce")
	defer span.End()

	cutoff := time.Now().Add(-s.maxAge)
	reason := fmt.Sprintf("matching run exceeded maximum age %v; marked failed by sweeper", s.maxAge)
	swept, err := s.postings.FailStuck(ctx, cutoff, reason)
	if err != nil {
		span.RecordError(err)
		slog.Error("stuck run sweep failed", slog.Any("error", err))
		return
	}
	span.SetAttributes(attribute.Int64("match.swept", swept))
	if swept > 0 {
		slog.Warn("swept stuck matching runs", slog.Int64("count", swept))
	}
}
