package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

// Query describes what to fetch. Sources that cannot narrow results on their
// side return everything; the pipeline pre-filter steps do the narrowing.
type Query struct {
	Keywords         []string `mapstructure:"keywords"`
	Location         string   `mapstructure:"location"`
	PostedWithinDays int      `mapstructure:"posted-within-days"`
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	ExcludeFile      string   `mapstructure:"exclude-file"`
}

// Source produces raw postings for a query.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]posting.Posting, error)
}

// record accepts both the normalized posting shape and JSearch-style field
// names. The first non-empty alternative wins.
type record struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`

	Title    string `json:"title"`
	JobTitle string `json:"job_title"`

	Company      string `json:"company"`
	EmployerName string `json:"employer_name"`

	Location struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"location"`
	City     string `json:"city"`
	State    string `json:"state"`
	JobCity  string `json:"job_city"`
	JobState string `json:"job_state"`

	PostedAt        string `json:"posted_at"`
	JobPostedAtUTC  string `json:"job_posted_at_datetime_utc"`
	JobPostedAtUnix int64  `json:"job_posted_at_timestamp"`

	ApplyURL     string `json:"apply_url"`
	JobApplyLink string `json:"job_apply_link"`
	JobLink      string `json:"job_link"`

	Source       string `json:"source"`
	JobPublisher string `json:"job_publisher"`

	Description    string `json:"description"`
	JobDescription string `json:"job_description"`
}

// Decode converts raw JSON items into postings. Items that cannot be decoded
// are logged and skipped; decoding never fails the whole batch.
func Decode(items []any, defaultSource string, logger *zap.Logger) []posting.Posting {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make([]posting.Posting, 0, len(items))
	for i, item := range items {
		var r record
		cfg := &mapstructure.DecoderConfig{
			Result:           &r,
			TagName:          "json",
			WeaklyTypedInput: true,
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			logger.Warn("creating posting decoder", zap.Error(err))
			continue
		}
		if err := decoder.Decode(item); err != nil {
			logger.Warn("skipping malformed posting record", zap.Int("index", i), zap.Error(err))
			continue
		}

		out = append(out, r.toPosting(defaultSource, logger))
	}
	return out
}

func (r record) toPosting(defaultSource string, logger *zap.Logger) posting.Posting {
	applyURL := first(r.ApplyURL, r.JobApplyLink, r.JobLink)

	p := posting.Posting{
		ID:      first(r.ID, r.JobID, applyURL),
		Title:   first(r.Title, r.JobTitle),
		Company: first(r.Company, r.EmployerName),
		Location: posting.Location{
			City:  first(r.Location.City, r.City, r.JobCity),
			State: first(r.Location.State, r.State, r.JobState),
		},
		ApplyURL:    applyURL,
		Source:      first(r.Source, strings.ToLower(r.JobPublisher), defaultSource),
		Description: first(r.Description, r.JobDescription),
	}

	if raw := first(r.PostedAt, r.JobPostedAtUTC); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			logger.Debug("ignoring unparsable posting time",
				zap.String("posting_id", p.ID),
				zap.String("posted_at", raw),
			)
		} else {
			p.PostedAt = &t
		}
	} else if r.JobPostedAtUnix > 0 {
		t := time.Unix(r.JobPostedAtUnix, 0).UTC()
		p.PostedAt = &t
	}

	return p
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
