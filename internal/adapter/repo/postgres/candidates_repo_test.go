package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentforge/matching-engine/internal/domain"
)

func TestListPoolParsesProfiles(t *testing.T) {
	t.Parallel()
	pool := &poolStub{query: func(_ string, args []any) (pgx.Rows, error) {
		assert.Equal(t, []any{300}, args)
		return &fakeRows{rows: [][]any{
			{"u1", "cv1", []byte(`{"skills":["Go"]}`), "Ada", "ada@example.com", ""},
			{"u2", "cv2", []byte(`not json`), "Bob", "bob@example.com", ""},
			{"u3", "cv3", []byte(`{"summary":"builder"}`), "Cam", "cam@example.com", "img.png"},
		}}, nil
	}}
	repo := NewCandidateRepo(pool)

	out, err := repo.ListPool(context.Background(), 300)
	require.NoError(t, err)
	// The malformed row is skipped, not fatal.
	require.Len(t, out, 2)
	assert.Equal(t, "u1", out[0].UserID)
	assert.Equal(t, []string{"Go"}, out[0].Profile.Skills)
	assert.Equal(t, "u3", out[1].UserID)
	assert.Equal(t, "img.png", out[1].ProfileImage)
}

func TestGetByUserIDNotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{queryRow: func(_ string, _ []any) pgx.Row {
		return rowStub{err: pgx.ErrNoRows}
	}}
	repo := NewCandidateRepo(pool)

	_, err := repo.GetByUserID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByUserID(t *testing.T) {
	t.Parallel()
	pool := &poolStub{queryRow: func(_ string, args []any) pgx.Row {
		assert.Equal(t, []any{"u1"}, args)
		return rowStub{scan: func(dest ...any) error {
			*(dest[0].(*string)) = "u1"
			*(dest[1].(*string)) = "cv1"
			*(dest[2].(*[]byte)) = []byte(`{"skills":["Python"]}`)
			*(dest[3].(*string)) = "Ada"
			*(dest[4].(*string)) = "ada@example.com"
			*(dest[5].(*string)) = ""
			return nil
		}}
	}}
	repo := NewCandidateRepo(pool)

	c, err := repo.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "cv1", c.CVID)
	assert.Equal(t, []string{"Python"}, c.Profile.Skills)
}
