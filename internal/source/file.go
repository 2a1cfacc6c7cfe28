package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

// FileSource reads postings from a JSON file holding either an array of
// records or a JSearch response object with a "data" array.
type FileSource struct {
	path   string
	logger *zap.Logger
}

var _ Source = (*FileSource)(nil)

func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, logger: logger}
}

func (s *FileSource) Fetch(_ context.Context, _ Query) ([]posting.Posting, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading postings file: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing postings file %q: %w", s.path, err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		data, ok := v["data"].([]any)
		if !ok {
			return nil, fmt.Errorf("postings file %q: object without a data array", s.path)
		}
		items = data
	default:
		return nil, fmt.Errorf("postings file %q: unexpected top-level %T", s.path, doc)
	}

	postings := Decode(items, "file", s.logger)
	s.logger.Debug("postings read from file", zap.String("path", s.path), zap.Int("count", len(postings)))

	return postings, nil
}
