package match

import (
	"math"
	"strings"
	"time"

	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/pkg/textx"
)

// Tier-one weights for the coarse filter composite.
const (
	keywordSkillsWeight     = 0.60
	keywordExperienceWeight = 0.30
	keywordEducationWeight  = 0.10
)

// neutralScore stands in when a signal cannot be computed fairly: a posting
// with no extractable keywords of a kind should not zero out every candidate.
const neutralScore = 50

// tenureBonusCap bounds the experience bonus; five points per year of tenure.
const (
	tenureBonusCap     = 30.0
	tenureBonusPerYear = 5.0
)

// LexicalScores are the deterministic overlap percentages between one keyword
// set and one candidate profile, each in [0,100].
type LexicalScores struct {
	Skills     int
	Experience int
	Education  int
	// Keyword is the tier-one filter composite.
	Keyword int
}

// ScoreLexical computes the keyword-overlap scores of a candidate against a
// job's keyword set. Absent data degrades to documented defaults, never to an
// error.
func ScoreLexical(kw domain.KeywordSet, p domain.Profile) LexicalScores {
	s := LexicalScores{
		Skills:     skillsMatch(kw, p),
		Experience: experienceMatch(kw, p),
		Education:  educationMatch(kw, p),
	}
	s.Keyword = Clamp(math.Round(
		float64(s.Skills)*keywordSkillsWeight +
			float64(s.Experience)*keywordExperienceWeight +
			float64(s.Education)*keywordEducationWeight))
	return s
}

// FullMatchScore is the detail/manual-search composite blending the lexical
// scores with historical performance. It is not the pipeline's final ranking
// score.
func FullMatchScore(lex LexicalScores, testScore, interviewScore float64) int {
	return Clamp(math.Round(
		float64(lex.Skills)*0.40 +
			float64(lex.Experience)*0.25 +
			float64(lex.Education)*0.10 +
			clampF(testScore)*0.15 +
			clampF(interviewScore)*0.10))
}

// skillsMatch is the fraction of technology and soft-skill keywords found
// anywhere in the candidate's skills, project tech lists, summary, or
// experience descriptions. Defaults to 50 when the posting yields no
// technology or skill keywords.
func skillsMatch(kw domain.KeywordSet, p domain.Profile) int {
	terms := append(append([]string{}, kw.Technologies...), kw.Skills...)
	if len(terms) == 0 {
		return neutralScore
	}
	hay := skillsHaystack(p)
	found := 0
	for _, term := range terms {
		if textx.ContainsTerm(hay, term) {
			found++
		}
	}
	return Clamp(math.Round(float64(found) / float64(len(terms)) * 100))
}

func skillsHaystack(p domain.Profile) string {
	var b strings.Builder
	b.WriteString(p.Summary)
	for _, s := range p.Skills {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	for _, pr := range p.Projects {
		for _, t := range pr.Technologies {
			b.WriteByte(' ')
			b.WriteString(t)
		}
	}
	for _, e := range p.Experience {
		b.WriteByte(' ')
		b.WriteString(e.Description)
	}
	return textx.Fold(b.String())
}

// experienceMatch is the fraction of position keywords found in any
// experience entry's title or description, plus a tenure bonus of five points
// per year capped at thirty. A candidate with no experience entries scores 0
// outright; a posting with no position keywords contributes a neutral base so
// the score is driven by tenure alone.
func experienceMatch(kw domain.KeywordSet, p domain.Profile) int {
	if len(p.Experience) == 0 {
		return 0
	}
	base := float64(neutralScore)
	if len(kw.Positions) > 0 {
		var b strings.Builder
		for _, e := range p.Experience {
			b.WriteString(e.Title)
			b.WriteByte(' ')
			b.WriteString(e.Description)
			b.WriteByte(' ')
		}
		hay := textx.Fold(b.String())
		found := 0
		for _, term := range kw.Positions {
			if textx.ContainsTerm(hay, term) {
				found++
			}
		}
		base = float64(found) / float64(len(kw.Positions)) * 100
	}
	return Clamp(math.Round(base + tenureBonus(p.Experience)))
}

func tenureBonus(entries []domain.ExperienceEntry) float64 {
	years := totalYears(entries, time.Now())
	return math.Min(tenureBonusCap, years*tenureBonusPerYear)
}

// totalYears sums per-entry tenure; open-ended entries run until now.
func totalYears(entries []domain.ExperienceEntry, now time.Time) float64 {
	var total time.Duration
	for _, e := range entries {
		if e.StartDate == nil {
			continue
		}
		end := now
		if !e.Current && e.EndDate != nil {
			end = *e.EndDate
		}
		if end.After(*e.StartDate) {
			total += end.Sub(*e.StartDate)
		}
	}
	return total.Hours() / 24 / 365.25
}

// educationMatch is the fraction of education keywords found in degree and
// field text. No education entries scores 0; no education keywords on the
// posting yields the neutral default.
func educationMatch(kw domain.KeywordSet, p domain.Profile) int {
	if len(p.Education) == 0 {
		return 0
	}
	if len(kw.Education) == 0 {
		return neutralScore
	}
	var b strings.Builder
	for _, e := range p.Education {
		b.WriteString(e.Degree)
		b.WriteByte(' ')
		b.WriteString(e.Field)
		b.WriteByte(' ')
	}
	hay := textx.Fold(b.String())
	found := 0
	for _, term := range kw.Education {
		if textx.ContainsTerm(hay, term) {
			found++
		}
	}
	return Clamp(math.Round(float64(found) / float64(len(kw.Education)) * 100))
}

// Clamp bounds a rounded score to [0,100].
func Clamp(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

func clampF(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
