package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Static is an in-memory provider that maps known texts to fixed vectors.
// Unknown texts get Fallback, or an error when Fallback is nil. It is used by
// tests across packages.
type Static struct {
	Vectors  map[string]Vector
	Fallback Vector
	// Fail lists texts that always fail to embed.
	Fail map[string]error

	mu    sync.Mutex
	calls [][]string
}

var _ Provider = (*Static)(nil)

func (s *Static) Name() string { return "static" }

func (s *Static) Embed(_ context.Context, texts []string) ([]Vector, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), texts...))
	s.mu.Unlock()

	out := make([]Vector, 0, len(texts))
	for _, text := range texts {
		if err, ok := s.Fail[text]; ok {
			return nil, err
		}
		v, ok := s.Vectors[text]
		if !ok {
			if s.Fallback == nil {
				return nil, fmt.Errorf("no vector for text %q", text)
			}
			v = s.Fallback
		}
		out = append(out, v)
	}
	return out, nil
}

// Calls returns the batches passed to Embed so far.
func (s *Static) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	copy(out, s.calls)
	return out
}
