package match

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/talentforge/matching-engine/internal/adapter/observability"
	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/pkg/textx"
)

// BatchLimit is the most candidates a single semantic scoring call accepts.
const BatchLimit = 50

// NeutralAIScore is the fallback applied when the semantic tier cannot score
// a candidate for any reason.
const NeutralAIScore = 50

// Summary bounds keep the prompt size predictable regardless of résumé size.
const (
	summaryMaxChars      = 200
	summaryMaxExperience = 3
	summaryMaxEducation  = 2
	summaryMaxSkills     = 10
	summaryMaxProjects   = 3
)

// SemanticMatcher issues one batch completion scoring many candidates at once
// against a job description.
type SemanticMatcher struct {
	AI domain.CompletionClient
}

// NewSemanticMatcher constructs a SemanticMatcher over the given client.
func NewSemanticMatcher(ai domain.CompletionClient) *SemanticMatcher {
	return &SemanticMatcher{AI: ai}
}

// ScoreBatch returns a fit score in [0,100] for every input candidate. It
// never fails the caller: a disabled client, a failed call, or ids missing
// from the reply all degrade to the neutral default, so the returned map
// always covers exactly the input candidate set.
func (m *SemanticMatcher) ScoreBatch(ctx domain.Context, jobDescription string, candidates []domain.Candidate) map[string]int {
	scores := make(map[string]int, len(candidates))
	for _, c := range candidates {
		scores[c.UserID] = NeutralAIScore
	}
	if len(candidates) == 0 {
		return scores
	}
	if len(candidates) > BatchLimit {
		candidates = candidates[:BatchLimit]
	}
	if m.AI == nil || !m.AI.Enabled() {
		slog.Debug("semantic tier disabled; using neutral scores", slog.Int("candidates", len(candidates)))
		observability.SemanticFallback("disabled")
		return scores
	}

	msgs := []domain.ChatMessage{
		{Role: "system", Content: scoringSystemPrompt},
		{Role: "user", Content: buildScoringPrompt(jobDescription, candidates)},
	}
	raw, err := m.AI.CompleteJSON(ctx, msgs, buildScoreSchema(candidates))
	if err != nil {
		slog.Warn("semantic scoring failed; falling back to neutral scores",
			slog.Int("candidates", len(candidates)), slog.Any("error", err))
		observability.SemanticFallback("error")
		return scores
	}

	var reply map[string]int
	if err := json.Unmarshal(raw, &reply); err != nil {
		slog.Warn("semantic reply decode failed", slog.Any("error", err))
		observability.SemanticFallback("decode")
		return scores
	}
	missing := 0
	for id := range scores {
		if v, ok := reply[id]; ok {
			scores[id] = Clamp(float64(v))
		} else {
			missing++
		}
	}
	if missing > 0 {
		slog.Info("semantic reply omitted candidates; backfilled with neutral score",
			slog.Int("missing", missing))
	}
	return scores
}

const scoringSystemPrompt = `You are a technical recruiter scoring candidates against a job description.
For every candidate id you are given, return an integer from 0 to 100 reflecting how well the candidate fits the job.
Respond with a single JSON object mapping each candidate id to its integer score. No other keys, no prose.`

func buildScoringPrompt(jobDescription string, candidates []domain.Candidate) string {
	var b strings.Builder
	b.WriteString("Job description:\n")
	b.WriteString(textx.SanitizeText(jobDescription))
	b.WriteString("\n\nCandidates:\n")
	for _, c := range candidates {
		b.WriteString("\n--- candidate id: ")
		b.WriteString(c.UserID)
		b.WriteByte('\n')
		b.WriteString(CandidateSummary(c))
		b.WriteByte('\n')
	}
	b.WriteString("\nReturn JSON: {\"<candidate id>\": <score 0-100>, ...} covering every candidate id above.")
	return b.String()
}

// buildScoreSchema requires the reply to be an object of bounded integers
// keyed by candidate id. Ids may be omitted (they are backfilled), but no
// foreign keys or out-of-range values pass validation.
func buildScoreSchema(candidates []domain.Candidate) []byte {
	props := make(map[string]any, len(candidates))
	for _, c := range candidates {
		props[c.UserID] = map[string]any{
			"type":    "integer",
			"minimum": 0,
			"maximum": 100,
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	b, _ := json.Marshal(schema)
	return b
}

// CandidateSummary renders a bounded-length text view of a profile: name,
// truncated summary, and capped slices of experience, education, skills, and
// project technologies.
func CandidateSummary(c domain.Candidate) string {
	var b strings.Builder
	b.WriteString("Name: ")
	b.WriteString(c.Name)
	if s := textx.Truncate(c.Profile.Summary, summaryMaxChars); s != "" {
		b.WriteString("\nSummary: ")
		b.WriteString(s)
	}
	if len(c.Profile.Experience) > 0 {
		b.WriteString("\nExperience:")
		for i, e := range c.Profile.Experience {
			if i >= summaryMaxExperience {
				break
			}
			fmt.Fprintf(&b, " %s - %s;", e.Title, e.Company)
		}
	}
	if len(c.Profile.Education) > 0 {
		b.WriteString("\nEducation:")
		for i, e := range c.Profile.Education {
			if i >= summaryMaxEducation {
				break
			}
			fmt.Fprintf(&b, " %s %s;", e.Degree, e.Field)
		}
	}
	if len(c.Profile.Skills) > 0 {
		n := len(c.Profile.Skills)
		if n > summaryMaxSkills {
			n = summaryMaxSkills
		}
		b.WriteString("\nSkills: ")
		b.WriteString(strings.Join(c.Profile.Skills[:n], ", "))
	}
	if len(c.Profile.Projects) > 0 {
		var techs []string
		for i, p := range c.Profile.Projects {
			if i >= summaryMaxProjects {
				break
			}
			techs = append(techs, strings.Join(p.Technologies, ", "))
		}
		b.WriteString("\nProject tech: ")
		b.WriteString(strings.Join(techs, "; "))
	}
	return b.String()
}

// RankByKeyword sorts candidates by tier-one score descending, breaking ties
// by user id for deterministic output.
func RankByKeyword(scored []ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Lexical.Keyword != scored[j].Lexical.Keyword {
			return scored[i].Lexical.Keyword > scored[j].Lexical.Keyword
		}
		return scored[i].Candidate.UserID < scored[j].Candidate.UserID
	})
}

// ScoredCandidate pairs a pool candidate with its lexical scores during a run.
type ScoredCandidate struct {
	Candidate domain.Candidate
	Lexical   LexicalScores
}
