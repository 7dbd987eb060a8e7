package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentforge/matching-engine/internal/domain"
)

type sweepPostings struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	reasons []string
	swept   int64
}

func (p *sweepPostings) Get(_ domain.Context, _ string) (domain.JobPosting, error) {
	return domain.JobPosting{}, domain.ErrNotFound
}

func (p *sweepPostings) ClaimForMatching(_ domain.Context, _ string) (bool, error) {
	return false, nil
}

func (p *sweepPostings) SaveMatchResults(_ domain.Context, _ string, _ []domain.MatchResult, _ string, _ time.Time) error {
	return nil
}

func (p *sweepPostings) MarkMatchFailed(_ domain.Context, _ string, _ string) error {
	return nil
}

func (p *sweepPostings) FailStuck(_ domain.Context, cutoff time.Time, reason string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.cutoffs = append(p.cutoffs, cutoff)
	p.reasons = append(p.reasons, reason)
	return p.swept, nil
}

func (p *sweepPostings) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestNewStuckRunSweeperNilPostings(t *testing.T) {
	t.Parallel()
	s := NewStuckRunSweeper(nil, time.Minute, time.Minute)
	assert.Nil(t, s)

	// Run on a nil sweeper must return instead of panicking.
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nil sweeper did not return")
	}
}

func TestSweeperSweepsImmediatelyAndOnTick(t *testing.T) {
	t.Parallel()
	postings := &sweepPostings{swept: 2}
	s := NewStuckRunSweeper(postings, 10*time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return postings.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	postings.mu.Lock()
	defer postings.mu.Unlock()
	require.NotEmpty(t, postings.cutoffs)
	assert.WithinDuration(t, time.Now().Add(-10*time.Minute), postings.cutoffs[0], 5*time.Second)
	assert.Contains(t, postings.reasons[0], "exceeded maximum age")
}

func TestNewStuckRunSweeperDefaults(t *testing.T) {
	t.Parallel()
	s := NewStuckRunSweeper(&sweepPostings{}, 0, 0)
	require.NotNil(t, s)
	assert.Equal(t, 10*time.Minute, s.maxAge)
	assert.Equal(t, time.Minute, s.interval)
}
