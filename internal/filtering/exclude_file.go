package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

// ExcludedPosting is a posting the user never wants to see again.
type ExcludedPosting struct {
	ID         string    `json:"id"`
	URL        string    `json:"url,omitempty"`
	Company    string    `json:"company,omitempty"`
	ExcludedAt time.Time `json:"excluded_at"`
}

// ExcludedPostings is the content of an exclude file.
type ExcludedPostings struct {
	Items []*ExcludedPosting `json:"items"`
}

// ToExcluded converts scored postings into exclude file entries.
func ToExcluded(items []posting.Scored) *ExcludedPostings {
	excluded := &ExcludedPostings{}
	now := time.Now().UTC()
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			ID:         item.ID,
			URL:        item.ApplyURL,
			Company:    item.Company,
			ExcludedAt: now,
		})
	}
	return excluded
}

// ReadExcludeFile reads an exclude file. A missing or empty file yields no entries.
func ReadExcludeFile(path string) (*ExcludedPostings, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ExcludedPostings{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedPostings{}, nil
	}

	var excluded ExcludedPostings
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds entries whose id is not already present.
func (e *ExcludedPostings) Append(other *ExcludedPostings) {
	have := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		have[item.ID] = struct{}{}
	}
	for _, item := range other.Items {
		if _, ok := have[item.ID]; ok {
			continue
		}
		have[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedPostings) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// ToFile writes the entries as indented JSON, replacing the file.
func (e *ExcludedPostings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

type excludeFileFilter struct {
	toggle
	path   string
	logger *zap.Logger
}

// NewExcludeFile creates a filter that removes postings listed in an exclude file.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	f := &excludeFileFilter{path: strings.TrimSpace(path), logger: nopIfNil(logger)}
	if f.path == "" {
		f.Disable("no exclude file configured")
	}
	return f
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, p []posting.Posting) ([]posting.Posting, Step, error) {
	excluded, err := ReadExcludeFile(f.path)
	if err != nil {
		return nil, Step{}, fmt.Errorf("getting excluded postings from file: %w", err)
	}

	ids := posting.NewSeenSet(excluded.IDs()...)
	left, dropped := keep(p, func(item posting.Posting) bool {
		return !ids.Has(item.ID)
	})

	if len(dropped) > 0 {
		f.logger.Info("excluding postings based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(left)),
		)
	}

	return left, NewStep(f.Name(), len(p), len(left)), nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
