package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/ai/gemini"
	"github.com/spigell/jobmatch/internal/ai/openai"
	"github.com/spigell/jobmatch/internal/delivery"
	"github.com/spigell/jobmatch/internal/directive"
	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/metrics"
	"github.com/spigell/jobmatch/internal/pipeline"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/secrets"
	"github.com/spigell/jobmatch/internal/source"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/vocab"
)

// application holds everything a run needs. Close releases the store.
type application struct {
	config    *Config
	pipeline  *pipeline.Pipeline
	store     store.SeenStore
	metrics   *metrics.Recorder
	deliverer delivery.Deliverer
	logger    *zap.Logger
}

func (a *application) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
}

// request builds a pipeline request from the configuration.
func (a *application) request() pipeline.Request {
	return pipeline.Request{
		Session:    a.config.Session,
		Query:      a.config.Search,
		Directive:  a.config.Directive.Text,
		MinScore:   a.config.Matching.MinScore,
		Cutoff:     a.config.Directive.Cutoff,
		MaxResults: a.config.MaxResults,
	}
}

// writeMetrics exports the recorder when a metrics file is configured.
func (a *application) writeMetrics() {
	if a.config.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.config.MetricsFile); err != nil {
		a.logger.Warn("writing metrics", zap.Error(err))
		return
	}
	a.logger.Debug("metrics written", zap.String("filename", a.config.MetricsFile))
}

// wrapDeliverer lets callers decorate the configured deliverer, for example
// with an interactive confirmation.
type wrapDeliverer func(delivery.Deliverer) delivery.Deliverer

func newApplication(ctx context.Context, config *Config, logger *zap.Logger, wrap wrapDeliverer) (*application, error) {
	v, err := vocab.Load(config.Vocabulary)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, config.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("building embedding provider: %w", err)
	}

	src, err := newSource(config.Postings, logger)
	if err != nil {
		return nil, fmt.Errorf("building posting source: %w", err)
	}

	seen, err := store.New(ctx, config.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %q store: %w", config.Store.Type, err)
	}

	deliverer, err := newDeliverer(config.Delivery, logger)
	if err != nil {
		seen.Close()
		return nil, fmt.Errorf("building deliverer: %w", err)
	}
	if wrap != nil {
		deliverer = wrap(deliverer)
	}

	prefilters := newPrefilters(config, logger)
	for _, status := range filtering.Describe(prefilters) {
		logger.Debug("prefilter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	recorder := metrics.New()

	p, err := pipeline.New(pipeline.Deps{
		Source:     src,
		Profiles:   newProfileSource(config.Profile, v, logger),
		Store:      seen,
		Provider:   provider,
		Vocabulary: v,
		Prefilters: prefilters,
		Deliverer:  deliverer,
		Metrics:    recorder,
		Logger:     logger,
		Matching: matching.Options{
			SemanticWeight:  config.Matching.SemanticWeight,
			SkillWeight:     config.Matching.SkillWeight,
			ExperienceBonus: config.Matching.ExperienceBonus,
			SeniorYears:     config.Matching.SeniorYears,
			JuniorYears:     config.Matching.JuniorYears,
		},
		Directive: directive.Options{
			SemanticWeight: config.Directive.SemanticWeight,
			KeywordWeight:  config.Directive.KeywordWeight,
		},
	})
	if err != nil {
		seen.Close()
		return nil, err
	}

	return &application{
		config:    config,
		pipeline:  p,
		store:     seen,
		metrics:   recorder,
		deliverer: deliverer,
		logger:    logger,
	}, nil
}

func newProvider(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (embedding.Provider, error) {
	if cfg == nil {
		return nil, pipeline.ErrNoEmbeddingProvider
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pipeline.ErrNoEmbeddingProvider, err)
		}
		return gemini.NewEmbedder(ctx, apiKey, cfg.Model, cfg.MaxRetries, logger)
	case "openai":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pipeline.ErrNoEmbeddingProvider, err)
		}
		return openai.NewEmbedder(apiKey, openai.Options{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func newSource(cfg PostingsConfig, logger *zap.Logger) (source.Source, error) {
	switch strings.TrimSpace(strings.ToLower(cfg.Source)) {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, fmt.Errorf("postings.path is required for the file source")
		}
		return source.NewFileSource(cfg.Path, logger), nil
	case "jsearch":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "jsearch api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "JSEARCH_API_KEY",
		})
		if err != nil {
			return nil, err
		}

		client := source.NewJSearch(apiKey, logger)
		if cfg.MaxPages > 0 {
			client.MaxPages = cfg.MaxPages
		}
		if cfg.UserAgent != "" {
			client.UserAgent = cfg.UserAgent
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported postings source: %s", cfg.Source)
	}
}

func newProfileSource(cfg ProfileConfig, v *vocab.Vocabulary, logger *zap.Logger) profile.Source {
	if strings.TrimSpace(cfg.Text) != "" {
		return &profile.Static{
			Text:            cfg.Text,
			Skills:          cfg.Skills,
			ExperienceYears: cfg.ExperienceYears,
			Vocabulary:      v,
		}
	}
	return profile.NewFileSource(cfg.Path, v, logger)
}

func newPrefilters(config *Config, logger *zap.Logger) []filtering.Filter {
	q := config.Search

	steps := []filtering.Filter{
		filtering.NewTitleKeywords(q.Keywords, logger),
		filtering.NewLocation(q.Location, logger),
		filtering.NewRecency(q.PostedWithinDays, logger),
		filtering.NewExcludedCompanies(q.ExcludeCompanies, logger),
		filtering.NewExcludeFile(q.ExcludeFile, logger),
	}

	// The API already matches keywords against the whole posting and accepts
	// locations like "USA" that never appear in a posting's "City, State".
	if strings.EqualFold(strings.TrimSpace(config.Postings.Source), "jsearch") {
		filtering.DisableByName(steps, "title_keywords", "source searches by keywords")
		filtering.DisableByName(steps, "location", "source searches by location")
	}

	return steps
}

func newDeliverer(cfg DeliveryConfig, logger *zap.Logger) (delivery.Deliverer, error) {
	multi := delivery.Multi{}
	if cfg.Log {
		multi = append(multi, delivery.NewLog(logger))
	}
	if cfg.CSVDir != "" {
		multi = append(multi, delivery.NewCSV(cfg.CSVDir, logger))
	}
	if cfg.JSONDir != "" {
		multi = append(multi, delivery.NewJSON(cfg.JSONDir, logger))
	}
	if len(cfg.Email.To) > 0 {
		email, err := newEmail(cfg.Email, logger)
		if err != nil {
			return nil, err
		}
		multi = append(multi, email)
	}
	if len(multi) == 0 {
		return delivery.NewLog(logger), nil
	}
	return multi, nil
}

func newEmail(cfg EmailConfig, logger *zap.Logger) (*delivery.Email, error) {
	var password string
	if cfg.Username != "" {
		var err error
		password, err = secrets.Load(secrets.Source{
			Name:  "smtp password",
			Value: cfg.Password,
			File:  cfg.PasswordFile,
			Env:   "SMTP_PASSWORD",
		})
		if err != nil {
			return nil, err
		}
	}

	return delivery.NewEmail(delivery.EmailOptions{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		Password:  password,
		From:      cfg.From,
		To:        cfg.To,
		Subject:   cfg.Subject,
		AttachCSV: cfg.AttachCSV,
	}, logger)
}
