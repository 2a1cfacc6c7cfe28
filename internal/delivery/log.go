package delivery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

// Log writes every posting of the report as a structured log entry.
type Log struct {
	logger *zap.Logger
}

var _ Deliverer = (*Log)(nil)

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Name() string {
	return "log"
}

func (l *Log) Deliver(_ context.Context, r Report) error {
	logger := l.logger.With(zap.String("run_id", r.RunID), zap.String("session", r.Session))

	if r.Len() == 0 {
		logger.Info("no matching postings")
		return nil
	}

	for i, p := range r.Postings {
		logger.Info("matching posting", postingFields(i+1, p)...)
	}

	logger.Info("postings delivered", zap.Int("count", r.Len()))
	return nil
}

func postingFields(rank int, p posting.Scored) []zap.Field {
	fields := []zap.Field{
		zap.Int("rank", rank),
		zap.String("posting_id", p.ID),
		zap.String("title", p.Title),
		zap.String("company", p.Company),
		zap.Float64("match_score", p.Match),
		zap.Float64("semantic_score", p.Semantic),
		zap.Float64("skill_match_score", p.SkillMatch),
	}
	if p.Filter > 0 {
		fields = append(fields, zap.Float64("filter_score", p.Filter))
	}
	if loc := p.Location.String(); loc != "" {
		fields = append(fields, zap.String("location", loc))
	}
	if len(p.MatchedSkills) > 0 {
		fields = append(fields, zap.String("matched_skills", strings.Join(p.MatchedSkills, ", ")))
	}
	if p.ApplyURL != "" {
		fields = append(fields, zap.String("apply_url", p.ApplyURL))
	}
	if p.Error != "" {
		fields = append(fields, zap.String("scoring_error", p.Error))
	}
	return fields
}
