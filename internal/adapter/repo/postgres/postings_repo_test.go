package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentforge/matching-engine/internal/domain"
)

func TestClaimForMatching(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	repo := NewPostingRepo(pool)

	claimed, err := repo.ClaimForMatching(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	require.Len(t, pool.execArgs, 1)
	assert.Equal(t, []any{"job-1", domain.MatchProcessing, domain.PostingPublished}, pool.execArgs[0])
}

func TestClaimForMatchingAlreadyHeld(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	repo := NewPostingRepo(pool)

	claimed, err := repo.ClaimForMatching(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestClaimForMatchingError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("connection refused")
	}}
	repo := NewPostingRepo(pool)

	_, err := repo.ClaimForMatching(context.Background(), "job-1")
	assert.ErrorContains(t, err, "op=posting.claim")
}

func TestSaveMatchResults(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	repo := NewPostingRepo(pool)

	results := []domain.MatchResult{{UserID: "u1", MatchScore: 88}}
	err := repo.SaveMatchResults(context.Background(), "job-1", results, "cache-key", time.Now())
	require.NoError(t, err)
	require.Len(t, pool.execArgs, 1)
	assert.Equal(t, "job-1", pool.execArgs[0][0])
	assert.Equal(t, domain.MatchCompleted, pool.execArgs[0][1])
	assert.Contains(t, string(pool.execArgs[0][2].([]byte)), `"u1"`)
	assert.Equal(t, "cache-key", pool.execArgs[0][3])
}

func TestSaveMatchResultsNilBecomesEmptyList(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	repo := NewPostingRepo(pool)

	require.NoError(t, repo.SaveMatchResults(context.Background(), "job-1", nil, "k", time.Now()))
	assert.Equal(t, "[]", string(pool.execArgs[0][2].([]byte)))
}

func TestSaveMatchResultsNotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	repo := NewPostingRepo(pool)

	err := repo.SaveMatchResults(context.Background(), "gone", nil, "k", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkMatchFailed(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	repo := NewPostingRepo(pool)

	require.NoError(t, repo.MarkMatchFailed(context.Background(), "job-1", "stats aggregation failed"))
	assert.Equal(t, []any{"job-1", domain.MatchFailed, "stats aggregation failed"}, pool.execArgs[0])
}

func TestFailStuck(t *testing.T) {
	t.Parallel()
	pool := &poolStub{exec: func(_ string, _ []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 3"), nil
	}}
	repo := NewPostingRepo(pool)

	n, err := repo.FailStuck(context.Background(), time.Now().Add(-10*time.Minute), "swept")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{queryRow: func(_ string, _ []any) pgx.Row {
		return rowStub{err: pgx.ErrNoRows}
	}}
	repo := NewPostingRepo(pool)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetDecodesCachedResults(t *testing.T) {
	t.Parallel()
	pool := &poolStub{queryRow: func(_ string, _ []any) pgx.Row {
		return rowStub{scan: func(dest ...any) error {
			*(dest[0].(*string)) = "job-1"
			*(dest[1].(*string)) = "Backend Engineer"
			*(dest[2].(*string)) = "desc"
			*(dest[3].(*json.RawMessage)) = json.RawMessage(`["go"]`)
			*(dest[4].(*string)) = domain.PostingPublished
			*(dest[5].(*domain.MatchStatus)) = domain.MatchCompleted
			*(dest[6].(*string)) = ""
			*(dest[7].(*string)) = "key"
			*(dest[8].(*[]byte)) = []byte(`[{"userId":"u1","matchScore":90}]`)
			*(dest[9].(**time.Time)) = nil
			*(dest[10].(*time.Time)) = time.Now()
			return nil
		}}
	}}
	repo := NewPostingRepo(pool)

	p, err := repo.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchCompleted, p.MatchStatus)
	require.Len(t, p.CachedResults, 1)
	assert.Equal(t, "u1", p.CachedResults[0].UserID)
	assert.Equal(t, 90, p.CachedResults[0].MatchScore)
}
