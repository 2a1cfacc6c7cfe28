package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/posting"
)

// Report is the outcome of a completed run handed to deliverers.
type Report struct {
	RunID       string           `json:"run_id"`
	Session     string           `json:"session"`
	Directive   string           `json:"directive,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
	Steps       []filtering.Step `json:"steps"`
	Postings    []posting.Scored `json:"postings"`
}

func (r Report) Len() int {
	return len(r.Postings)
}

// Deliverer presents a report. Deliverers only format; bounding the number of
// postings is the caller's job.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, r Report) error
}

// Multi fans a report out to every deliverer. All deliverers run even when
// one fails; failures are joined.
type Multi []Deliverer

var _ Deliverer = Multi(nil)

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Deliver(ctx context.Context, r Report) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Deliver(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ReportByCompany groups postings by company for a quick overview.
func ReportByCompany(postings []posting.Scored) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, p := range postings {
		key := p.Company
		if key == "" {
			key = "unknown"
		}
		report[key] = append(report[key], map[string]string{
			"title":       p.Title,
			"url":         p.ApplyURL,
			"location":    p.Location.String(),
			"match_score": fmt.Sprintf("%.2f", p.Match),
		})
	}
	return report
}
