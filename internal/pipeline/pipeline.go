package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/dedup"
	"github.com/spigell/jobmatch/internal/delivery"
	"github.com/spigell/jobmatch/internal/directive"
	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/metrics"
	"github.com/spigell/jobmatch/internal/posting"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/source"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/utils"
	"github.com/spigell/jobmatch/internal/vocab"
)

// State is the terminal state of a run.
type State string

const (
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Abort reasons.
const (
	ReasonProfileMissing   = "profile_missing"
	ReasonNoPostings       = "no_postings"
	ReasonNoUnseenPostings = "no_unseen_postings"
)

const (
	DefaultMinScore   = 40.0
	DefaultMaxResults = 20

	maxLogLength = 120
)

var ErrNoEmbeddingProvider = errors.New("no embedding provider configured")

// Deps are the collaborators of a pipeline. Provider, Source and Profiles are
// required.
type Deps struct {
	Source     source.Source
	Profiles   profile.Source
	Store      store.SeenStore
	Provider   embedding.Provider
	Vocabulary *vocab.Vocabulary
	// Prefilters run on fetched postings before deduplication.
	Prefilters []filtering.Filter
	Deliverer  delivery.Deliverer
	Metrics    *metrics.Recorder
	Logger     *zap.Logger

	Matching  matching.Options
	Directive directive.Options
}

// Request parameterizes a single run.
type Request struct {
	Session   string
	Query     source.Query
	Directive string
	// MinScore is the inclusive match score threshold, in percent.
	MinScore float64
	// Cutoff is the exclusive directive filter threshold, as a fraction.
	Cutoff float64
	// MaxResults bounds the delivered postings. Zero means DefaultMaxResults.
	MaxResults int
}

// Result describes what a run did.
type Result struct {
	RunID       string           `json:"run_id"`
	Session     string           `json:"session"`
	State       State            `json:"state"`
	AbortReason string           `json:"abort_reason,omitempty"`
	Steps       []filtering.Step `json:"steps"`
	Postings    []posting.Scored `json:"postings"`
	// Seen is the seen set after the run.
	Seen posting.SeenSet `json:"-"`
	// NewlySeen counts ids recorded by this run.
	NewlySeen int `json:"newly_seen"`
	// Failures counts postings scored as zero because their embedding failed.
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration"`
}

// Pipeline sequences fetch, deduplication, scoring and filtering of postings.
type Pipeline struct {
	source     source.Source
	profiles   profile.Source
	store      store.SeenStore
	prefilters []filtering.Filter
	scorer     *matching.Scorer
	directive  *directive.Filter
	deliverer  delivery.Deliverer
	metrics    *metrics.Recorder
	logger     *zap.Logger

	now   func() time.Time
	newID func() string
}

func New(deps Deps) (*Pipeline, error) {
	if deps.Provider == nil {
		return nil, ErrNoEmbeddingProvider
	}
	if deps.Source == nil {
		return nil, errors.New("posting source is required")
	}
	if deps.Profiles == nil {
		return nil, errors.New("profile source is required")
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	seen := deps.Store
	if seen == nil {
		seen = store.NopStore{}
	}

	deliverer := deps.Deliverer
	if deliverer == nil {
		deliverer = delivery.NewLog(log)
	}

	v := deps.Vocabulary
	if v == nil {
		v = vocab.Default()
	}

	return &Pipeline{
		source:     deps.Source,
		profiles:   deps.Profiles,
		store:      seen,
		prefilters: deps.Prefilters,
		scorer:     matching.NewScorer(deps.Provider, v, deps.Matching, log),
		directive:  directive.New(deps.Provider, v, deps.Directive, log),
		deliverer:  deliverer,
		metrics:    deps.Metrics,
		logger:     log,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

type run struct {
	*Result
	logger *zap.Logger
	p      *Pipeline
}

func (r *run) step(s filtering.Step) {
	r.Steps = append(r.Steps, s)
	s.Log(r.logger)
	r.p.metrics.Stage(s.Name, s.Left)
}

func (r *run) abort(reason string) *Result {
	r.State = StateAborted
	r.AbortReason = reason
	r.logger.Info("run aborted", zap.String("reason", reason))
	return r.Result
}

// Run executes one pipeline run. Missing inputs end the run in the Aborted
// state without an error; errors are returned only for failures that make
// the result untrustworthy.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	started := p.now()

	session := strings.TrimSpace(req.Session)
	if session == "" {
		session = store.DefaultSession
	}

	result := &Result{
		RunID:    p.newID(),
		Session:  session,
		Steps:    make([]filtering.Step, 0),
		Postings: make([]posting.Scored, 0),
	}
	r := &run{
		Result: result,
		logger: logger.WithRun(p.logger, result.RunID, session),
		p:      p,
	}

	res, err := p.run(ctx, r, req)

	result.Duration = p.now().Sub(started)
	state, reason := string(result.State), result.AbortReason
	if err != nil {
		state, reason = "failed", ""
	}
	p.metrics.EmbeddingFailures(result.Failures)
	p.metrics.RunFinished(state, reason, result.Duration)

	return res, err
}

func (p *Pipeline) run(ctx context.Context, r *run, req Request) (*Result, error) {
	log := r.logger

	prof, err := p.profiles.Load(ctx)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			log.Warn("profile is not available", zap.Error(err))
			return r.abort(ReasonProfileMissing), nil
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	log.Info("starting the search",
		zap.Strings("keywords", req.Query.Keywords),
		zap.String("location", req.Query.Location),
		zap.Int("posted_within_days", req.Query.PostedWithinDays),
	)

	fetched, err := p.source.Fetch(ctx, req.Query)
	if err != nil {
		log.Error("fetching postings failed, continuing with none", zap.Error(err))
		fetched = nil
	}
	r.step(filtering.NewStep("fetch", len(fetched), len(fetched)))

	candidates, steps, err := filtering.Run(ctx, log, p.prefilters, fetched)
	if err != nil {
		return nil, fmt.Errorf("pre-filtering postings: %w", err)
	}
	for _, s := range steps {
		r.Steps = append(r.Steps, s)
		p.metrics.Stage(s.Name, s.Left)
	}

	if len(candidates) == 0 {
		return r.abort(ReasonNoPostings), nil
	}

	seen, err := p.store.LoadSeen(ctx, r.Session)
	if err != nil {
		return nil, fmt.Errorf("loading seen postings: %w", err)
	}

	unseen, updated := dedup.Deduplicate(candidates, seen)
	newIDs := updated.Diff(seen)
	r.Seen = updated
	r.NewlySeen = len(newIDs)
	log.Debug("unseen postings", zap.Strings("posting_ids", newIDs))
	r.step(filtering.NewStep("dedup", len(candidates), len(unseen)))

	if len(unseen) == 0 {
		return r.abort(ReasonNoUnseenPostings), nil
	}

	scored, err := p.scorer.Score(ctx, unseen, prof)
	if err != nil {
		return nil, fmt.Errorf("scoring postings: %w", err)
	}
	r.Failures = countFailed(scored)
	r.step(filtering.NewStep("score", len(unseen), len(scored)))

	selected := matching.AboveMinimum(scored, req.MinScore)
	r.step(filtering.NewStep("min_score", len(scored), len(selected)))

	if strings.TrimSpace(req.Directive) != "" {
		log.Info("applying directive",
			zap.String("directive", utils.TruncateForLog(req.Directive, maxLogLength)),
			zap.Float64("cutoff", req.Cutoff),
		)

		filtered, err := p.directive.Apply(ctx, selected, req.Directive, req.Cutoff)
		if err != nil {
			return nil, fmt.Errorf("applying directive: %w", err)
		}
		r.step(filtering.NewStep("directive", len(selected), len(filtered)))
		selected = filtered
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	top := selected
	if len(top) > limit {
		top = top[:limit]
	}
	r.step(filtering.NewStep("max_results", len(selected), len(top)))

	r.Postings = top

	report := delivery.Report{
		RunID:       r.RunID,
		Session:     r.Session,
		Directive:   req.Directive,
		GeneratedAt: p.now().UTC(),
		Steps:       r.Steps,
		Postings:    top,
	}
	if err := p.deliverer.Deliver(ctx, report); err != nil {
		return nil, fmt.Errorf("delivering results: %w", err)
	}

	if r.NewlySeen > 0 {
		if err := p.store.SaveSeen(ctx, r.Session, updated); err != nil {
			return nil, fmt.Errorf("saving seen postings: %w", err)
		}
		log.Info("seen postings saved", zap.Int("new", r.NewlySeen), zap.Int("total", updated.Len()))
	}

	r.State = StateCompleted
	log.Info("run completed",
		zap.Int("delivered", len(top)),
		zap.Int("failures", r.Failures),
	)

	return r.Result, nil
}

func countFailed(items []posting.Scored) int {
	n := 0
	for _, item := range items {
		if item.Error != "" {
			n++
		}
	}
	return n
}
