// Package match implements the scoring core of the candidate funnel: keyword
// extraction, lexical scoring, résumé normalization, and batch semantic
// scoring against the completion API.
package match

import (
	_ "embed"

	"gopkg.in/yaml.v3"

	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/pkg/textx"
)

//go:embed vocab.yaml
var vocabYAML []byte

type vocabulary struct {
	Technologies []string `yaml:"technologies"`
	SoftSkills   []string `yaml:"soft_skills"`
	Positions    []string `yaml:"positions"`
	Education    []string `yaml:"education"`
}

// vocab is parsed once at init; the file is embedded, so a parse failure is a
// build defect rather than a runtime condition.
var vocab = func() vocabulary {
	var v vocabulary
	if err := yaml.Unmarshal(vocabYAML, &v); err != nil {
		panic("match: parsing embedded vocab.yaml: " + err.Error())
	}
	return v
}()

// ExtractKeywords derives the structured keyword view of a job description.
// Pure; no I/O. Text with no recognizable terms yields empty sets.
func ExtractKeywords(description string) domain.KeywordSet {
	text := textx.Fold(description)
	return domain.KeywordSet{
		Technologies: matchVocab(text, vocab.Technologies),
		Skills:       matchVocab(text, vocab.SoftSkills),
		Positions:    matchVocab(text, vocab.Positions),
		Education:    matchVocab(text, vocab.Education),
	}
}

func matchVocab(text string, terms []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		if textx.ContainsTerm(text, term) {
			out = append(out, term)
			seen[term] = struct{}{}
		}
	}
	return out
}
