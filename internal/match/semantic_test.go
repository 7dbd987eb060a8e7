package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentforge/matching-engine/internal/domain"
)

type stubCompletion struct {
	enabled bool
	reply   string
	err     error
	// captured
	msgs   []domain.ChatMessage
	schema []byte
	calls  int
}

func (s *stubCompletion) Enabled() bool { return s.enabled }

func (s *stubCompletion) Complete(_ domain.Context, msgs []domain.ChatMessage) (string, error) {
	s.calls++
	s.msgs = msgs
	return s.reply, s.err
}

func (s *stubCompletion) CompleteJSON(_ domain.Context, msgs []domain.ChatMessage, schema []byte) ([]byte, error) {
	s.calls++
	s.msgs = msgs
	s.schema = schema
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.reply), nil
}

func poolOf(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Candidate{UserID: id, Name: "c-" + id})
	}
	return out
}

func TestScoreBatchSuccess(t *testing.T) {
	t.Parallel()
	ai := &stubCompletion{enabled: true, reply: `{"u1": 91, "u2": 12}`}
	m := NewSemanticMatcher(ai)

	scores := m.ScoreBatch(context.Background(), "build Go services", poolOf("u1", "u2"))
	assert.Equal(t, map[string]int{"u1": 91, "u2": 12}, scores)
	assert.Equal(t, 1, ai.calls)
	require.Len(t, ai.msgs, 2)
	assert.Equal(t, "system", ai.msgs[0].Role)
	assert.Contains(t, ai.msgs[1].Content, "u1")
	assert.Contains(t, ai.msgs[1].Content, "build Go services")
}

func TestScoreBatchDisabledClient(t *testing.T) {
	t.Parallel()
	m := NewSemanticMatcher(&stubCompletion{enabled: false})
	scores := m.ScoreBatch(context.Background(), "desc", poolOf("u1", "u2", "u3"))
	assert.Equal(t, map[string]int{"u1": 50, "u2": 50, "u3": 50}, scores)
}

func TestScoreBatchNilClient(t *testing.T) {
	t.Parallel()
	m := NewSemanticMatcher(nil)
	scores := m.ScoreBatch(context.Background(), "desc", poolOf("u1"))
	assert.Equal(t, map[string]int{"u1": 50}, scores)
}

func TestScoreBatchErrorFallsBack(t *testing.T) {
	t.Parallel()
	ai := &stubCompletion{enabled: true, err: errors.New("boom")}
	m := NewSemanticMatcher(ai)
	scores := m.ScoreBatch(context.Background(), "desc", poolOf("u1", "u2"))
	assert.Equal(t, map[string]int{"u1": 50, "u2": 50}, scores)
}

func TestScoreBatchBackfillsMissingIDs(t *testing.T) {
	t.Parallel()
	ai := &stubCompletion{enabled: true, reply: `{"u1": 88}`}
	m := NewSemanticMatcher(ai)
	scores := m.ScoreBatch(context.Background(), "desc", poolOf("u1", "u2"))
	assert.Equal(t, map[string]int{"u1": 88, "u2": 50}, scores)
}

func TestScoreBatchClampsReplyValues(t *testing.T) {
	t.Parallel()
	ai := &stubCompletion{enabled: true, reply: `{"u1": 250, "u2": -3}`}
	m := NewSemanticMatcher(ai)
	scores := m.ScoreBatch(context.Background(), "desc", poolOf("u1", "u2"))
	assert.Equal(t, map[string]int{"u1": 100, "u2": 0}, scores)
}

func TestScoreBatchUndecodableReply(t *testing.T) {
	t.Parallel()
	ai := &stubCompletion{enabled: true, reply: `[1,2,3]`}
	m := NewSemanticMatcher(ai)
	scores := m.ScoreBatch(context.Background(), "desc", poolOf("u1"))
	assert.Equal(t, map[string]int{"u1": 50}, scores)
}

func TestScoreBatchEmptyInput(t *testing.T) {
	t.Parallel()
	ai := &stubCompletion{enabled: true}
	m := NewSemanticMatcher(ai)
	scores := m.ScoreBatch(context.Background(), "desc", nil)
	assert.Empty(t, scores)
	assert.Zero(t, ai.calls)
}

func TestScoreBatchCapsBatchSize(t *testing.T) {
	t.Parallel()
	ids := make([]string, BatchLimit+10)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%03d", i)
	}
	ai := &stubCompletion{enabled: true, reply: `{}`}
	m := NewSemanticMatcher(ai)

	scores := m.ScoreBatch(context.Background(), "desc", poolOf(ids...))
	// Every input id is present even beyond the prompt cap.
	assert.Len(t, scores, BatchLimit+10)
	// The prompt only carries the first BatchLimit candidates.
	assert.Contains(t, ai.msgs[1].Content, "u049")
	assert.NotContains(t, ai.msgs[1].Content, "u050")
}

func TestBuildScoreSchema(t *testing.T) {
	t.Parallel()
	b := buildScoreSchema(poolOf("a", "b"))
	var schema map[string]any
	require.NoError(t, json.Unmarshal(b, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
}

func TestCandidateSummaryBounds(t *testing.T) {
	t.Parallel()
	c := domain.Candidate{
		UserID: "u1",
		Name:   "Dana",
		Profile: domain.Profile{
			Summary: strings.Repeat("x", 500),
			Skills:  make([]string, 25),
			Experience: []domain.ExperienceEntry{
				{Title: "A", Company: "1"}, {Title: "B", Company: "2"},
				{Title: "C", Company: "3"}, {Title: "D", Company: "4"},
			},
		},
	}
	for i := range c.Profile.Skills {
		c.Profile.Skills[i] = fmt.Sprintf("s%d", i)
	}
	s := CandidateSummary(c)
	assert.Contains(t, s, "Dana")
	assert.Contains(t, s, "A - 1")
	assert.Contains(t, s, "C - 3")
	assert.NotContains(t, s, "D - 4")
	assert.Contains(t, s, "s9")
	assert.NotContains(t, s, "s10,")
	assert.Less(t, len(s), 700)
}

func TestRankByKeyword(t *testing.T) {
	t.Parallel()
	scored := []ScoredCandidate{
		{Candidate: domain.Candidate{UserID: "b"}, Lexical: LexicalScores{Keyword: 40}},
		{Candidate: domain.Candidate{UserID: "c"}, Lexical: LexicalScores{Keyword: 90}},
		{Candidate: domain.Candidate{UserID: "a"}, Lexical: LexicalScores{Keyword: 40}},
	}
	RankByKeyword(scored)
	assert.Equal(t, "c", scored[0].Candidate.UserID)
	assert.Equal(t, "a", scored[1].Candidate.UserID)
	assert.Equal(t, "b", scored[2].Candidate.UserID)
}
