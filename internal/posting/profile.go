package posting

import "strings"

// Profile is the candidate side of every comparison.
type Profile struct {
	Text            string   `json:"text" yaml:"text"`
	Skills          []string `json:"skills" yaml:"skills"`
	ExperienceYears int      `json:"experience_years" yaml:"experience_years"`
}

// NewProfile builds a profile with normalized skills: trimmed, lower-cased and
// deduplicated in first-seen order. Negative experience is clamped to zero.
func NewProfile(text string, skills []string, years int) Profile {
	if years < 0 {
		years = 0
	}

	return Profile{
		Text:            text,
		Skills:          NormalizeSkills(skills),
		ExperienceYears: years,
	}
}

// NormalizeSkills lower-cases, trims and deduplicates skills, dropping empty ones.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		s := strings.ToLower(strings.TrimSpace(skill))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
