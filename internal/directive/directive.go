package directive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/utils"
	"github.com/spigell/jobmatch/internal/vocab"
)

const (
	DefaultCutoff         = 0.3
	DefaultSemanticWeight = 0.6
	DefaultKeywordWeight  = 0.4

	minKeywordLength = 3
	maxLogLength     = 120
)

// Options tunes the filter formula. Zero values fall back to defaults.
type Options struct {
	SemanticWeight float64
	KeywordWeight  float64
}

// Filter narrows scored postings by a free-text directive such as
// "filter for DevOps jobs requiring Terraform".
type Filter struct {
	provider  embedding.Provider
	stopwords map[string]struct{}
	opts      Options
	logger    *zap.Logger
}

// New creates a directive filter. A nil vocabulary uses the built-in stopwords.
func New(provider embedding.Provider, v *vocab.Vocabulary, opts Options, logger *zap.Logger) *Filter {
	if v == nil {
		v = vocab.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SemanticWeight == 0 && opts.KeywordWeight == 0 {
		opts.SemanticWeight = DefaultSemanticWeight
		opts.KeywordWeight = DefaultKeywordWeight
	}

	return &Filter{
		provider:  provider,
		stopwords: v.Stopwords(),
		opts:      opts,
		logger:    logger,
	}
}

// Keywords extracts the significant lower-case tokens of a directive in
// first-seen order: stopwords and tokens shorter than three runes are dropped.
func Keywords(directive string, stopwords map[string]struct{}) []string {
	tokens := strings.FieldsFunc(strings.ToLower(directive), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})

	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) < minKeywordLength {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// KeywordScore is the fraction of keywords found in text. No keywords score 0.
func KeywordScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	found := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

// Apply keeps postings whose filter score is strictly above cutoff and returns
// them sorted by filter score, highest first. Input order breaks ties.
// The directive is embedded once and all posting texts in one batch. A posting
// whose embedding fails scores 0.
func (f *Filter) Apply(ctx context.Context, items []posting.Scored, directive string, cutoff float64) ([]posting.Scored, error) {
	if f.provider == nil {
		return nil, errors.New("embedding provider is not configured")
	}
	if len(items) == 0 {
		return []posting.Scored{}, nil
	}

	keywords := Keywords(directive, f.stopwords)
	f.logger.Debug("directive keywords",
		zap.String("directive", utils.TruncateForLog(directive, maxLogLength)),
		zap.Strings("keywords", keywords),
		zap.Float64("cutoff", cutoff),
	)

	directiveVec, err := embedding.One(ctx, f.provider, directive)
	if err != nil {
		return nil, fmt.Errorf("embedding directive: %w", err)
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.ComparisonText()
	}

	vectors, errs := embedding.Batch(ctx, f.provider, texts, f.logger)

	kept := make([]posting.Scored, 0, len(items))
	for i, item := range items {
		out := item.Clone()

		score := 0.0
		if errs[i] != nil {
			f.logger.Warn("embedding posting for directive failed, assigning zero score",
				zap.String("posting_id", item.ID),
				zap.Error(errs[i]),
			)
			out.Error = errs[i].Error()
		} else {
			semantic := embedding.Similarity(directiveVec, vectors[i])
			score = f.opts.SemanticWeight*semantic + f.opts.KeywordWeight*KeywordScore(texts[i], keywords)
		}

		if score <= cutoff {
			f.logger.Debug("posting dropped by directive",
				zap.String("posting_id", item.ID),
				zap.Float64("filter_score", posting.Percent(score)),
			)
			continue
		}

		out.Filter = posting.Percent(score)
		kept = append(kept, out)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Filter > kept[j].Filter
	})

	return kept, nil
}
