package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

// Filter represents a single filtering step applied to postings.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, p []posting.Posting) ([]posting.Posting, Step, error)
}

// Step describes the result of executing a filtering or pipeline step.
type Step struct {
	Name    string `json:"name"`
	Initial int    `json:"initial"`
	Dropped int    `json:"dropped"`
	Left    int    `json:"left"`
}

// NewStep builds a step record from before and after counts.
func NewStep(name string, initial, left int) Step {
	return Step{Name: name, Initial: initial, Dropped: initial - left, Left: left}
}

// Log writes the step in the common "filter step" shape.
func (s Step) Log(logger *zap.Logger) {
	if logger == nil {
		return
	}
	logger.Info("filter step",
		zap.String("name", s.Name),
		zap.Int("initial", s.Initial),
		zap.Int("dropped", s.Dropped),
		zap.Int("left", s.Left),
	)
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// toggle carries the enabled state shared by every filter.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates and then executes the supplied filters sequentially, returning
// the remaining postings and one Step per executed filter.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, p []posting.Posting) ([]posting.Posting, []Step, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	infos := make([]Step, 0, len(steps))
	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, p)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		info.Name = step.Name()
		info.Log(logger)
		infos = append(infos, info)

		p = next
	}

	return p, infos, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the postings for which pred is true and the dropped ids.
func keep(p []posting.Posting, pred func(posting.Posting) bool) ([]posting.Posting, []string) {
	out := make([]posting.Posting, 0, len(p))
	dropped := make([]string, 0)
	for _, item := range p {
		if pred(item) {
			out = append(out, item)
			continue
		}
		dropped = append(dropped, item.ID)
	}
	return out, dropped
}
