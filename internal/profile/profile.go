package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/vocab"
)

// ErrNotFound is returned when no profile is available for a session.
var ErrNotFound = errors.New("profile not found")

// Source provides the candidate profile for a run.
type Source interface {
	Load(ctx context.Context) (posting.Profile, error)
}

// document is the on-disk profile shape. Either a structured YAML/JSON
// document or plain text is accepted.
type document struct {
	Text            string   `yaml:"text"`
	Skills          []string `yaml:"skills"`
	ExperienceYears *int     `yaml:"experience_years"`
}

// FileSource reads a profile from disk. Files with a .txt or .md extension are
// treated as resume text; everything else is parsed as YAML (which covers JSON).
// Missing skills and experience are derived from the text.
type FileSource struct {
	path   string
	vocab  *vocab.Vocabulary
	logger *zap.Logger
}

var _ Source = (*FileSource)(nil)

func NewFileSource(path string, v *vocab.Vocabulary, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if v == nil {
		v = vocab.Default()
	}
	return &FileSource{path: strings.TrimSpace(path), vocab: v, logger: logger}
}

func (s *FileSource) Load(_ context.Context) (posting.Profile, error) {
	if s.path == "" {
		return posting.Profile{}, ErrNotFound
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return posting.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return posting.Profile{}, fmt.Errorf("reading profile file: %w", err)
	}

	var doc document
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".txt", ".md":
		doc.Text = string(data)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return posting.Profile{}, fmt.Errorf("parsing profile file %q: %w", s.path, err)
		}
	}

	p, err := build(doc, s.vocab)
	if err != nil {
		return posting.Profile{}, fmt.Errorf("profile file %q: %w", s.path, err)
	}

	s.logger.Debug("profile loaded",
		zap.String("path", s.path),
		zap.Int("skills", len(p.Skills)),
		zap.Int("experience_years", p.ExperienceYears),
	)

	return p, nil
}

// Static serves a profile given inline in the configuration.
type Static struct {
	Text            string
	Skills          []string
	ExperienceYears *int
	Vocabulary      *vocab.Vocabulary
}

var _ Source = (*Static)(nil)

func (s *Static) Load(_ context.Context) (posting.Profile, error) {
	v := s.Vocabulary
	if v == nil {
		v = vocab.Default()
	}
	return build(document{Text: s.Text, Skills: s.Skills, ExperienceYears: s.ExperienceYears}, v)
}

func build(doc document, v *vocab.Vocabulary) (posting.Profile, error) {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return posting.Profile{}, ErrNotFound
	}

	skills := doc.Skills
	if len(skills) == 0 {
		skills = ExtractSkills(text, v.AllSkills())
	}

	years := ExtractYears(text)
	if doc.ExperienceYears != nil {
		years = *doc.ExperienceYears
	}

	return posting.NewProfile(text, skills, years), nil
}

// ExtractSkills returns the known skills mentioned in text as whole words,
// in the order of known.
func ExtractSkills(text string, known []string) []string {
	lower := strings.ToLower(text)
	out := make([]string, 0)
	for _, skill := range known {
		if skill == "" {
			continue
		}
		if skillPattern(skill).MatchString(lower) {
			out = append(out, skill)
		}
	}
	return out
}

// skillPattern matches skill bounded by anything that cannot be part of a
// skill token, so "go" does not match "good" and "c++" still matches.
func skillPattern(skill string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\p{L}\p{N}+#.])` + regexp.QuoteMeta(skill) + `($|[^\p{L}\p{N}+#])`)
}

var yearsPattern = regexp.MustCompile(`(?i)(\d{1,2})\+?\s*(?:years?|yrs?)`)

// ExtractYears returns the largest "N years" figure found in text, or 0.
func ExtractYears(text string) int {
	best := 0
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		best = max(best, n)
	}
	return best
}
