package posting

import (
	"math"
	"strings"
	"time"
)

// Location is an optional city/state pair attached to a posting.
type Location struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// String renders the location as "City, State", skipping empty parts.
func (l Location) String() string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(l.City); c != "" {
		parts = append(parts, c)
	}
	if s := strings.TrimSpace(l.State); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

// Posting is a single job posting as produced by a posting source.
// An empty ID makes the posting non-deduplicable, it is still scored.
type Posting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company,omitempty"`
	Location    Location   `json:"location"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	ApplyURL    string     `json:"apply_url,omitempty"`
	Source      string     `json:"source,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ComparisonText is the text scored against the profile and the directive.
func (p Posting) ComparisonText() string {
	if p.Description == "" {
		return p.Title
	}
	return p.Title + " " + p.Description
}

// Scores holds every score computed for a posting. Values are percentages in [0, 100].
type Scores struct {
	Match         float64  `json:"match_score"`
	Semantic      float64  `json:"semantic_score"`
	SkillMatch    float64  `json:"skill_match_score"`
	Filter        float64  `json:"filter_score,omitempty"`
	MatchedSkills []string `json:"matched_skills"`
	// Error is set when the embedding provider failed for this posting.
	Error string `json:"error,omitempty"`
}

// Scored is a posting with its scores attached.
type Scored struct {
	Posting
	Scores
}

// Clone returns a deep copy so that later stages never alias earlier results.
func (s Scored) Clone() Scored {
	out := s
	if s.PostedAt != nil {
		t := *s.PostedAt
		out.PostedAt = &t
	}
	if s.MatchedSkills != nil {
		out.MatchedSkills = append([]string(nil), s.MatchedSkills...)
	}
	return out
}

// IDs returns the ids of the given scored postings in order.
func IDs(items []Scored) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Percent converts a fraction into a percentage rounded to two decimals.
func Percent(fraction float64) float64 {
	return math.Round(fraction*10000) / 100
}
