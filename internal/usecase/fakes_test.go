package usecase

import (
	"errors"
	"time"

	"github.com/talentforge/matching-engine/internal/domain"
)

type fakePostings struct {
	posting domain.JobPosting
	getErr  error

	claimResult bool
	claimErr    error
	claimCalls  int

	saved       []domain.MatchResult
	savedKey    string
	savedAt     time.Time
	saveErr     error
	saveCalls   int
	failedWith  string
	failCalls   int
	markFailErr error
}

func (f *fakePostings) Get(_ domain.Context, id string) (domain.JobPosting, error) {
	if f.getErr != nil {
		return domain.JobPosting{}, f.getErr
	}
	if f.posting.ID != id {
		return domain.JobPosting{}, domain.ErrNotFound
	}
	return f.posting, nil
}

func (f *fakePostings) ClaimForMatching(_ domain.Context, _ string) (bool, error) {
	f.claimCalls++
	return f.claimResult, f.claimErr
}

func (f *fakePostings) SaveMatchResults(_ domain.Context, _ string, results []domain.MatchResult, cacheKey string, matchedAt time.Time) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = results
	f.savedKey = cacheKey
	f.savedAt = matchedAt
	return nil
}

func (f *fakePostings) MarkMatchFailed(_ domain.Context, _ string, reason string) error {
	f.failCalls++
	f.failedWith = reason
	return f.markFailErr
}

func (f *fakePostings) FailStuck(_ domain.Context, _ time.Time, _ string) (int64, error) {
	return 0, nil
}

type fakeCandidates struct {
	pool    []domain.Candidate
	poolErr error
	byID    map[string]domain.Candidate
}

func (f *fakeCandidates) ListPool(_ domain.Context, limit int) ([]domain.Candidate, error) {
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	if len(f.pool) > limit {
		return f.pool[:limit], nil
	}
	return f.pool, nil
}

func (f *fakeCandidates) GetByUserID(_ domain.Context, userID string) (domain.Candidate, error) {
	c, ok := f.byID[userID]
	if !ok {
		return domain.Candidate{}, domain.ErrNotFound
	}
	return c, nil
}

type fakeStats struct {
	stats map[string]domain.UserStats
	err   error
}

func (f *fakeStats) BatchStats(_ domain.Context, userIDs []string) (map[string]domain.UserStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.UserStats, len(userIDs))
	for _, id := range userIDs {
		out[id] = f.stats[id]
	}
	return out, nil
}

type fakeQueue struct {
	payloads []domain.MatchTaskPayload
	err      error
}

func (f *fakeQueue) EnqueueMatch(_ domain.Context, payload domain.MatchTaskPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, payload)
	return "task-" + payload.RunID, nil
}

type fakeScorer struct {
	scores map[string]int
	calls  int
	gotIDs []string
}

func (f *fakeScorer) ScoreBatch(_ domain.Context, _ string, candidates []domain.Candidate) map[string]int {
	f.calls++
	out := make(map[string]int, len(candidates))
	for _, c := range candidates {
		f.gotIDs = append(f.gotIDs, c.UserID)
		if v, ok := f.scores[c.UserID]; ok {
			out[c.UserID] = v
		} else {
			out[c.UserID] = 50
		}
	}
	return out
}

var errDB = errors.New("db down")
