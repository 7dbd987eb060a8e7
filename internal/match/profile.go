package match

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/pkg/textx"
)

// Résumé documents come from the external CV editor and are duck-typed:
// skills may be bare strings or tagged objects, dates come in several layouts,
// and every field is optional. ParseProfile is the single normalization
// boundary; everything downstream works on domain.Profile only.

// skillEntry accepts "React" as well as {"name": "React", "level": "expert"}.
type skillEntry struct {
	Name string
}

func (s *skillEntry) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		s.Name = str
		return nil
	}
	var obj struct {
		Name  string `json:"name"`
		Skill string `json:"skill"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("skill entry: %w", err)
	}
	if obj.Name != "" {
		s.Name = obj.Name
	} else {
		s.Name = obj.Skill
	}
	return nil
}

type rawExperience struct {
	Title       string    `json:"title"`
	Position    string    `json:"position"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	StartDate   flexiDate `json:"startDate"`
	EndDate     flexiDate `json:"endDate"`
	Current     bool      `json:"current"`
}

type rawEducation struct {
	Degree string `json:"degree"`
	Field  string `json:"field"`
	Major  string `json:"major"`
	School string `json:"school"`
}

type rawProject struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Technologies []skillEntry `json:"technologies"`
}

type rawProfile struct {
	Summary        string          `json:"summary"`
	Skills         []skillEntry    `json:"skills"`
	Experience     []rawExperience `json:"experience"`
	Education      []rawEducation  `json:"education"`
	Projects       []rawProject    `json:"projects"`
	Certifications []skillEntry    `json:"certifications"`
}

// flexiDate accepts "2021-03-15", "2021-03", "2021", and RFC3339 timestamps.
type flexiDate struct {
	t *time.Time
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01", "2006"}

func (d *flexiDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Ignore non-string dates rather than failing the whole document.
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.t = &t
			return nil
		}
	}
	return nil
}

// ParseProfile normalizes a raw résumé document into the canonical shape.
// Absent or malformed optional fields degrade to empty values; only a
// document that is not a JSON object at all is an error.
func ParseProfile(raw []byte) (domain.Profile, error) {
	var rp rawProfile
	if err := json.Unmarshal(raw, &rp); err != nil {
		return domain.Profile{}, fmt.Errorf("op=match.parse_profile: %w", err)
	}
	p := domain.Profile{
		Summary:        textx.SanitizeText(rp.Summary),
		Skills:         skillNames(rp.Skills),
		Certifications: skillNames(rp.Certifications),
	}
	for _, e := range rp.Experience {
		title := e.Title
		if title == "" {
			title = e.Position
		}
		p.Experience = append(p.Experience, domain.ExperienceEntry{
			Title:       title,
			Company:     e.Company,
			Description: e.Description,
			StartDate:   e.StartDate.t,
			EndDate:     e.EndDate.t,
			Current:     e.Current,
		})
	}
	for _, e := range rp.Education {
		field := e.Field
		if field == "" {
			field = e.Major
		}
		p.Education = append(p.Education, domain.EducationEntry{
			Degree: e.Degree,
			Field:  field,
			School: e.School,
		})
	}
	for _, pr := range rp.Projects {
		p.Projects = append(p.Projects, domain.ProjectEntry{
			Name:         pr.Name,
			Description:  pr.Description,
			Technologies: skillNames(pr.Technologies),
		})
	}
	return p, nil
}

func skillNames(entries []skillEntry) []string {
	var out []string
	for _, e := range entries {
		if name := strings.TrimSpace(e.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
