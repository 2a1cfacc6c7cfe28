package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"go.uber.org/zap"
)

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   Vector
		expect float64
	}{
		{name: "identical", a: Vector{1, 2, 3}, b: Vector{1, 2, 3}, expect: 1},
		{name: "orthogonal", a: Vector{1, 0}, b: Vector{0, 1}, expect: 0},
		{name: "opposite", a: Vector{1, 0}, b: Vector{-1, 0}, expect: -1},
		{name: "zero norm", a: Vector{0, 0}, b: Vector{1, 1}, expect: 0},
		{name: "empty", a: nil, b: Vector{1}, expect: 0},
		{name: "shorter prefix", a: Vector{1, 0}, b: Vector{1, 0, 5}, expect: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.expect) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestSimilarityClamps(t *testing.T) {
	if got := Similarity(Vector{1, 0}, Vector{-1, 0}); got != 0 {
		t.Fatalf("expected negative cosine to clamp to 0, got %v", got)
	}
	if got := Similarity(Vector{0.6, 0.8}, Vector{1, 0}); math.Abs(got-0.6) > 1e-6 {
		t.Fatalf("expected 0.6, got %v", got)
	}
}

func TestBatchSingleCall(t *testing.T) {
	p := &Static{Vectors: map[string]Vector{"a": {1}, "b": {2}}}

	vectors, errs := Batch(context.Background(), p, []string{"a", "b"}, zap.NewNop())
	if len(p.Calls()) != 1 {
		t.Fatalf("expected one provider call, got %d", len(p.Calls()))
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error for text %d: %v", i, err)
		}
	}
	if vectors[1][0] != 2 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestBatchFallsBackPerText(t *testing.T) {
	boom := errors.New("boom")
	p := &Static{
		Vectors: map[string]Vector{"a": {1}, "c": {3}},
		Fail:    map[string]error{"b": boom},
	}

	vectors, errs := Batch(context.Background(), p, []string{"a", "b", "c"}, nil)

	// one batched call plus one per text
	if got := len(p.Calls()); got != 4 {
		t.Fatalf("expected 4 provider calls, got %d", got)
	}
	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !errors.Is(errs[1], boom) {
		t.Fatalf("expected boom for the failing text, got %v", errs[1])
	}
	if vectors[2][0] != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestBatchSkipsBlankTexts(t *testing.T) {
	p := &Static{Fallback: Vector{1, 0}, Fail: map[string]error{"": errors.New("text must not be empty")}}

	texts := make([]string, 0, 51)
	texts = append(texts, "  ")
	for i := 0; i < 50; i++ {
		texts = append(texts, fmt.Sprintf("posting %d", i))
	}

	vectors, errs := Batch(context.Background(), p, texts, nil)

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one provider call, got %d", len(calls))
	}
	if len(calls[0]) != 50 {
		t.Fatalf("expected 50 texts in the batch, got %d", len(calls[0]))
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error for text %d: %v", i, err)
		}
	}
	if vectors[0] == nil || len(vectors[0]) != 0 {
		t.Fatalf("expected an empty vector for the blank text, got %v", vectors[0])
	}
	if got := Similarity(Vector{1, 0}, vectors[0]); got != 0 {
		t.Fatalf("expected zero similarity for the blank text, got %v", got)
	}
	if vectors[50][0] != 1 {
		t.Fatalf("unexpected vector for the last text: %v", vectors[50])
	}
}

func TestBatchOnlyBlankTexts(t *testing.T) {
	p := &Static{}
	_, errs := Batch(context.Background(), p, []string{"", "\n"}, nil)
	if len(p.Calls()) != 0 {
		t.Fatal("provider must not be called for blank texts")
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error for text %d: %v", i, err)
		}
	}
}

func TestBatchEmpty(t *testing.T) {
	p := &Static{}
	vectors, errs := Batch(context.Background(), p, nil, nil)
	if len(vectors) != 0 || len(errs) != 0 {
		t.Fatal("expected empty results")
	}
	if len(p.Calls()) != 0 {
		t.Fatal("provider must not be called for an empty batch")
	}
}

func TestOneCountMismatch(t *testing.T) {
	_, err := One(context.Background(), countProvider{}, "x")
	if !errors.Is(err, ErrCountMismatch) {
		t.Fatalf("expected count mismatch, got %v", err)
	}
}

type countProvider struct{}

func (countProvider) Name() string { return "count" }

func (countProvider) Embed(context.Context, []string) ([]Vector, error) {
	return []Vector{{1}, {2}}, nil
}
