package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobmatch/internal/posting"
)

func ids(p []posting.Posting) []string {
	out := make([]string, 0, len(p))
	for _, item := range p {
		out = append(out, item.ID)
	}
	return out
}

func at(t time.Time) *time.Time { return &t }

func TestTitleKeywords(t *testing.T) {
	f := NewTitleKeywords([]string{"DevOps", " sre "}, nil)
	p := []posting.Posting{
		{ID: "1", Title: "Senior DevOps Engineer"},
		{ID: "2", Title: "Frontend Developer"},
		{ID: "3", Title: "SRE"},
	}

	left, step, err := f.Apply(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(left), []string{"1", "3"}) {
		t.Fatalf("unexpected postings: %v", ids(left))
	}
	if step != (Step{Name: "title_keywords", Initial: 3, Dropped: 1, Left: 2}) {
		t.Fatalf("unexpected step: %+v", step)
	}

	if NewTitleKeywords(nil, nil).IsEnabled() {
		t.Fatal("expected filter without keywords to be disabled")
	}
}

func TestLocation(t *testing.T) {
	f := NewLocation("TX", nil)
	p := []posting.Posting{
		{ID: "austin", Location: posting.Location{City: "Austin", State: "TX"}},
		{ID: "nyc", Location: posting.Location{City: "New York", State: "NY"}},
		{ID: "remote"},
	}

	left, _, err := f.Apply(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(left), []string{"austin", "remote"}) {
		t.Fatalf("unexpected postings: %v", ids(left))
	}
}

func TestRecency(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	f := NewRecency(7, nil).(*recencyFilter)
	f.now = func() time.Time { return now }

	p := []posting.Posting{
		{ID: "fresh", PostedAt: at(now.AddDate(0, 0, -1))},
		{ID: "edge", PostedAt: at(now.AddDate(0, 0, -7))},
		{ID: "stale", PostedAt: at(now.AddDate(0, 0, -8))},
		{ID: "undated"},
	}

	left, step, err := f.Apply(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(left), []string{"fresh", "edge"}) {
		t.Fatalf("unexpected postings: %v", ids(left))
	}
	if step.Dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", step.Dropped)
	}

	if err := NewRecency(-1, nil).Validate(); err == nil {
		t.Fatal("expected validation error for negative days")
	}
}

func TestExcludedCompanies(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	f := NewExcludedCompanies([]string{"Acme Corp"}, zap.New(core))

	left, _, err := f.Apply(context.Background(), []posting.Posting{
		{ID: "1", Company: "acme corp"},
		{ID: "2", Company: "Globex"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(left), []string{"2"}) {
		t.Fatalf("unexpected postings: %v", ids(left))
	}
	if observed.FilterMessage("excluding postings by companies").Len() != 1 {
		t.Fatal("expected exclusion to be logged")
	}
}

func TestExcludeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	excluded := ToExcluded([]posting.Scored{
		{Posting: posting.Posting{ID: "a", Company: "Acme"}},
		{Posting: posting.Posting{ID: ""}},
	})
	excluded.Append(ToExcluded([]posting.Scored{{Posting: posting.Posting{ID: "a"}}, {Posting: posting.Posting{ID: "b"}}}))
	if !reflect.DeepEqual(excluded.IDs(), []string{"a", "b"}) {
		t.Fatalf("unexpected ids: %v", excluded.IDs())
	}
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("ToFile: %v", err)
	}

	f := NewExcludeFile(path, nil)
	left, _, err := f.Apply(context.Background(), []posting.Posting{{ID: "a"}, {ID: "c"}, {ID: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(left), []string{"c"}) {
		t.Fatalf("unexpected postings: %v", ids(left))
	}

	missing, err := ReadExcludeFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || len(missing.Items) != 0 {
		t.Fatalf("expected empty list for missing file, got %v, %v", missing, err)
	}
}

type failingFilter struct{ toggle }

func (f *failingFilter) Name() string { return "failing" }
func (f *failingFilter) Validate() error { return nil }
func (f *failingFilter) Apply(context.Context, []posting.Posting) ([]posting.Posting, Step, error) {
	return nil, Step{}, errors.New("boom")
}

func TestRun(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	steps := []Filter{
		NewTitleKeywords([]string{"engineer"}, logger),
		NewLocation("", logger),
		NewExcludedCompanies([]string{"globex"}, logger),
	}

	left, infos, err := Run(context.Background(), logger, steps, []posting.Posting{
		{ID: "1", Title: "Engineer", Company: "Acme"},
		{ID: "2", Title: "Engineer", Company: "Globex"},
		{ID: "3", Title: "Designer"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(ids(left), []string{"1"}) {
		t.Fatalf("unexpected postings: %v", ids(left))
	}
	if len(infos) != 2 || infos[0].Name != "title_keywords" || infos[1].Name != "companies" {
		t.Fatalf("unexpected steps: %+v", infos)
	}
	if observed.FilterMessage("filter disabled").Len() != 1 {
		t.Fatal("expected disabled location filter to be logged")
	}
	if observed.FilterMessage("filter step").Len() != 2 {
		t.Fatal("expected one log entry per executed step")
	}
}

func TestRunStopsOnError(t *testing.T) {
	_, _, err := Run(context.Background(), nil, []Filter{&failingFilter{}}, []posting.Posting{{ID: "1"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunValidatesBeforeApplying(t *testing.T) {
	_, _, err := Run(context.Background(), nil, []Filter{NewTitleKeywords([]string{"x"}, nil), NewRecency(-3, nil)}, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDescribeAndDisableByName(t *testing.T) {
	steps := []Filter{NewTitleKeywords([]string{"go"}, nil), &failingFilter{}}
	DisableByName(steps, "title_keywords", "manual")

	statuses := Describe(steps)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Enabled || statuses[0].Reason != "manual" {
		t.Fatalf("unexpected status: %+v", statuses[0])
	}
	if statuses[1].Name != "failing" || !statuses[1].Enabled {
		t.Fatalf("unexpected status: %+v", statuses[1])
	}
}
