package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Vector is a dense embedding returned by a provider.
type Vector []float32

// Provider turns texts into embeddings. Implementations must return exactly one
// vector per input text, in input order.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

var ErrCountMismatch = errors.New("embedding count does not match input count")

// Cosine returns the cosine similarity of a and b. A zero-norm vector yields 0.
// Vectors of different length are compared over the shorter prefix.
func Cosine(a, b Vector) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Similarity is Cosine clamped to [0, 1]; opposite directions count as unrelated.
func Similarity(a, b Vector) float64 {
	c := Cosine(a, b)
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// One embeds a single text.
func One(ctx context.Context, p Provider, text string) (Vector, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d, want 1", ErrCountMismatch, len(vectors))
	}
	return vectors[0], nil
}

// Batch embeds all non-blank texts with a single provider call. Blank texts
// are not sent and get an empty vector, which has zero similarity to anything.
// When the batched call fails, texts are embedded one by one so a single bad
// text only fails itself. The returned errs slice has an entry per text, nil
// on success.
func Batch(ctx context.Context, p Provider, texts []string, logger *zap.Logger) ([]Vector, []error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	vectors := make([]Vector, len(texts))
	errs := make([]error, len(texts))

	index := make([]int, 0, len(texts))
	pending := make([]string, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			vectors[i] = Vector{}
			continue
		}
		index = append(index, i)
		pending = append(pending, text)
	}
	if len(pending) == 0 {
		return vectors, errs
	}

	batch, err := p.Embed(ctx, pending)
	if err == nil && len(batch) != len(pending) {
		err = fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(batch), len(pending))
	}
	if err == nil {
		for j, i := range index {
			vectors[i] = batch[j]
		}
		return vectors, errs
	}

	logger.Warn("batched embedding failed, embedding texts one by one",
		zap.String("provider", p.Name()),
		zap.Int("texts", len(pending)),
		zap.Error(err),
	)

	for j, i := range index {
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs[i] = ctxErr
			continue
		}
		vectors[i], errs[i] = One(ctx, p, pending[j])
	}

	return vectors, errs
}
