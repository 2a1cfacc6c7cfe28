package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Vocabulary holds the word tables used by scoring and filtering.
type Vocabulary struct {
	SeniorMarkers      []string            `yaml:"senior-markers" json:"senior_markers"`
	JuniorMarkers      []string            `yaml:"junior-markers" json:"junior_markers"`
	DirectiveStopwords []string            `yaml:"directive-stopwords" json:"directive_stopwords"`
	Skills             map[string][]string `yaml:"skills" json:"skills"`
}

// Default returns the built-in tables.
func Default() *Vocabulary {
	v, err := parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary is invalid: %v", err))
	}
	return v
}

// Load reads a YAML file and overlays it on the built-in tables. Sections
// missing from the file keep their defaults. An empty path returns the defaults.
func Load(path string) (*Vocabulary, error) {
	base := Default()

	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file %q: %w", path, err)
	}

	override, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing vocabulary file %q: %w", path, err)
	}

	if len(override.SeniorMarkers) > 0 {
		base.SeniorMarkers = override.SeniorMarkers
	}
	if len(override.JuniorMarkers) > 0 {
		base.JuniorMarkers = override.JuniorMarkers
	}
	if len(override.DirectiveStopwords) > 0 {
		base.DirectiveStopwords = override.DirectiveStopwords
	}
	if len(override.Skills) > 0 {
		base.Skills = override.Skills
	}

	return base, nil
}

func parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	v.SeniorMarkers = normalize(v.SeniorMarkers)
	v.JuniorMarkers = normalize(v.JuniorMarkers)
	v.DirectiveStopwords = normalize(v.DirectiveStopwords)
	for category, skills := range v.Skills {
		v.Skills[category] = normalize(skills)
	}

	return &v, nil
}

// Stopwords returns the directive stopwords as a set.
func (v *Vocabulary) Stopwords() map[string]struct{} {
	set := make(map[string]struct{}, len(v.DirectiveStopwords))
	for _, w := range v.DirectiveStopwords {
		set[w] = struct{}{}
	}
	return set
}

// AllSkills returns every known skill across categories, sorted and deduplicated.
func (v *Vocabulary) AllSkills() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, skills := range v.Skills {
		for _, s := range skills {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
