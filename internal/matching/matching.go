package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/vocab"
)

const (
	DefaultSemanticWeight  = 0.7
	DefaultSkillWeight     = 0.3
	DefaultExperienceBonus = 0.10
	DefaultSeniorYears     = 5
	DefaultJuniorYears     = 2
)

// Options tunes the relevance formula. Both weights zero select the default
// weights. Nil pointers select the defaults; an explicit zero is kept, so a
// zero ExperienceBonus turns the seniority adjustment off.
type Options struct {
	SemanticWeight  float64
	SkillWeight     float64
	ExperienceBonus *float64
	// SeniorYears is the minimum experience rewarded by a senior marker.
	SeniorYears *int
	// JuniorYears is the maximum experience rewarded by a junior marker.
	JuniorYears *int
}

// formula is Options with every default resolved.
type formula struct {
	semanticWeight  float64
	skillWeight     float64
	experienceBonus float64
	seniorYears     int
	juniorYears     int
}

func (o Options) resolve() formula {
	f := formula{
		semanticWeight:  o.SemanticWeight,
		skillWeight:     o.SkillWeight,
		experienceBonus: DefaultExperienceBonus,
		seniorYears:     DefaultSeniorYears,
		juniorYears:     DefaultJuniorYears,
	}
	if f.semanticWeight == 0 && f.skillWeight == 0 {
		f.semanticWeight = DefaultSemanticWeight
		f.skillWeight = DefaultSkillWeight
	}
	if o.ExperienceBonus != nil {
		f.experienceBonus = *o.ExperienceBonus
	}
	if o.SeniorYears != nil {
		f.seniorYears = *o.SeniorYears
	}
	if o.JuniorYears != nil {
		f.juniorYears = *o.JuniorYears
	}
	return f
}

// Scorer ranks postings against a candidate profile.
type Scorer struct {
	provider embedding.Provider
	senior   []string
	junior   []string
	formula  formula
	logger   *zap.Logger
}

// NewScorer creates a scorer. A nil vocabulary uses the built-in tables.
func NewScorer(provider embedding.Provider, v *vocab.Vocabulary, opts Options, logger *zap.Logger) *Scorer {
	if v == nil {
		v = vocab.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		provider: provider,
		senior:   v.SeniorMarkers,
		junior:   v.JuniorMarkers,
		formula:  opts.resolve(),
		logger:   logger,
	}
}

// Score computes match scores for every posting and returns them sorted by
// match score, highest first. Input order breaks ties. The profile is embedded
// once and all posting texts in one batch. A posting whose embedding fails
// gets zero scores and an error note instead of failing the whole batch.
func (s *Scorer) Score(ctx context.Context, postings []posting.Posting, profile posting.Profile) ([]posting.Scored, error) {
	if s.provider == nil {
		return nil, errors.New("embedding provider is not configured")
	}
	if len(postings) == 0 {
		return []posting.Scored{}, nil
	}

	profileVec, err := embedding.One(ctx, s.provider, profile.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding profile: %w", err)
	}

	texts := make([]string, len(postings))
	for i, p := range postings {
		texts[i] = p.ComparisonText()
	}

	vectors, errs := embedding.Batch(ctx, s.provider, texts, s.logger)

	scored := make([]posting.Scored, 0, len(postings))
	for i, p := range postings {
		if errs[i] != nil {
			s.logger.Warn("scoring posting failed, assigning zero score",
				zap.String("posting_id", p.ID),
				zap.String("title", p.Title),
				zap.Error(errs[i]),
			)
			scored = append(scored, posting.Scored{
				Posting: p,
				Scores: posting.Scores{
					MatchedSkills: []string{},
					Error:         errs[i].Error(),
				},
			})
			continue
		}

		semantic := embedding.Similarity(profileVec, vectors[i])
		item := s.score(p, texts[i], semantic, profile)

		s.logger.Debug("posting scored",
			zap.String("posting_id", p.ID),
			zap.Float64("match_score", item.Match),
			zap.Float64("semantic_score", item.Semantic),
			zap.Float64("skill_match_score", item.SkillMatch),
			zap.Strings("matched_skills", item.MatchedSkills),
		)

		scored = append(scored, item)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Match > scored[j].Match
	})

	return scored, nil
}

func (s *Scorer) score(p posting.Posting, text string, semantic float64, profile posting.Profile) posting.Scored {
	matched := SkillMatches(text, profile.Skills)
	skill := float64(len(matched)) / float64(max(len(profile.Skills), 1))

	combined := s.formula.semanticWeight*semantic + s.formula.skillWeight*skill
	combined += s.experienceBonus(text, profile.ExperienceYears)
	if combined > 1 {
		combined = 1
	}
	if combined < 0 {
		combined = 0
	}

	return posting.Scored{
		Posting: p,
		Scores: posting.Scores{
			Match:         posting.Percent(combined),
			Semantic:      posting.Percent(semantic),
			SkillMatch:    posting.Percent(skill),
			MatchedSkills: matched,
		},
	}
}

// experienceBonus rewards a seniority marker that agrees with the candidate's
// experience. At most one bonus applies.
func (s *Scorer) experienceBonus(text string, years int) float64 {
	lower := strings.ToLower(text)
	if years >= s.formula.seniorYears && containsAny(lower, s.senior) {
		return s.formula.experienceBonus
	}
	if years <= s.formula.juniorYears && containsAny(lower, s.junior) {
		return s.formula.experienceBonus
	}
	return 0
}

// SkillMatches returns the skills occurring in text as case-insensitive
// substrings, in skill order.
func SkillMatches(text string, skills []string) []string {
	lower := strings.ToLower(text)
	matched := make([]string, 0, len(skills))
	for _, skill := range skills {
		if skill == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(skill)) {
			matched = append(matched, skill)
		}
	}
	return matched
}

// AboveMinimum keeps postings whose match score is at least minScore, preserving order.
func AboveMinimum(items []posting.Scored, minScore float64) []posting.Scored {
	out := make([]posting.Scored, 0, len(items))
	for _, item := range items {
		if item.Match >= minScore {
			out = append(out, item)
		}
	}
	return out
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(text, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
