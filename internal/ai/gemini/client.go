package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/utils"
)

const (
	defaultModel      = "text-embedding-004"
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	maxQuotaDelay     = 30 * time.Second
	// maxBatch is the number of texts Gemini accepts in one embed request.
	maxBatch = 100
	taskType = "SEMANTIC_SIMILARITY"
)

var wait = utils.WaitFor

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder wraps the Google GenAI client to produce text embeddings.
type Embedder struct {
	models     contentEmbedder
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ embedding.Provider = (*Embedder)(nil)

// NewEmbedder creates an Embedder configured for the Gemini API backend.
func NewEmbedder(ctx context.Context, apiKey, model string, maxRetries int, log *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEmbedder(client.Models, model, maxRetries, log), nil
}

func newEmbedder(models contentEmbedder, model string, maxRetries int, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Embedder{
		models:     models,
		model:      model,
		maxRetries: maxRetries,
		retryDelay: defaultRetryDelay,
		logger:     logger.WithProvider(log, "gemini", model),
	}
}

func (e *Embedder) Name() string {
	return "gemini"
}

func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

// Embed returns one vector per text. Large inputs are split into several
// requests; any failed request fails the whole call.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	out := make([]embedding.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		vectors, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	return out, nil
}

func (e *Embedder) embedChunk(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, errors.New("text to embed must not be empty")
		}
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}

	cfg := &genai.EmbedContentConfig{TaskType: taskType}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
		if err == nil {
			return toVectors(resp, len(texts))
		}
		lastErr = err

		delay, retry := e.retryDelayFor(err, attempt)
		if !retry || attempt == e.maxRetries {
			break
		}

		e.logger.Warn("embedding request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

func toVectors(resp *genai.EmbedContentResponse, want int) ([]embedding.Vector, error) {
	if resp == nil {
		return nil, errors.New("gemini api returned empty response")
	}
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", embedding.ErrCountMismatch, len(resp.Embeddings), want)
	}

	out := make([]embedding.Vector, 0, want)
	for _, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, errors.New("gemini api returned an empty embedding")
		}
		out = append(out, embedding.Vector(e.Values))
	}
	return out, nil
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry(?:Delay"?:?\s*"?| after\s+| in\s+)(\d+(?:\.\d+)?)\s*s`)

// retryDelayFor reports whether err is temporary and how long to wait.
// Quota errors asking for a long pause are not retried.
func (e *Embedder) retryDelayFor(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if m := retryAfterPattern.FindStringSubmatch(apiErr.Message); m != nil {
			seconds, parseErr := strconv.ParseFloat(m[1], 64)
			if parseErr == nil {
				delay := time.Duration(seconds * float64(time.Second))
				if delay > maxQuotaDelay {
					return 0, false
				}
				return delay, true
			}
		}
		return utils.Backoff(attempt, e.retryDelay), true
	case apiErr.Code >= http.StatusInternalServerError:
		return utils.Backoff(attempt, e.retryDelay), true
	default:
		return 0, false
	}
}
