package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/posting"
)

type titleKeywordsFilter struct {
	toggle
	keywords []string
	logger   *zap.Logger
}

// NewTitleKeywords creates a filter that keeps postings whose title contains
// any of the keywords. No keywords disables the filter.
func NewTitleKeywords(keywords []string, logger *zap.Logger) Filter {
	f := &titleKeywordsFilter{keywords: posting.NormalizeSkills(keywords), logger: nopIfNil(logger)}
	if len(f.keywords) == 0 {
		f.Disable("no keywords configured")
	}
	return f
}

func (f *titleKeywordsFilter) Name() string { return "title_keywords" }

func (f *titleKeywordsFilter) Validate() error { return nil }

func (f *titleKeywordsFilter) Apply(_ context.Context, p []posting.Posting) ([]posting.Posting, Step, error) {
	left, dropped := keep(p, func(item posting.Posting) bool {
		title := strings.ToLower(item.Title)
		for _, kw := range f.keywords {
			if strings.Contains(title, kw) {
				return true
			}
		}
		return false
	})

	if len(dropped) > 0 {
		f.logger.Debug("excluding postings without search keywords in title",
			zap.Strings("keywords", f.keywords),
			zap.Strings("excluded_postings", dropped),
		)
	}

	return left, NewStep(f.Name(), len(p), len(left)), nil
}

func (f *titleKeywordsFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"keywords": strings.Join(f.keywords, ",")},
	}
}

type locationFilter struct {
	toggle
	location string
	logger   *zap.Logger
}

// NewLocation creates a filter that keeps postings whose "City, State" contains
// the location. Postings without any location are kept, since remote postings
// usually carry none.
func NewLocation(location string, logger *zap.Logger) Filter {
	f := &locationFilter{location: strings.ToLower(strings.TrimSpace(location)), logger: nopIfNil(logger)}
	if f.location == "" {
		f.Disable("no location configured")
	}
	return f
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Validate() error { return nil }

func (f *locationFilter) Apply(_ context.Context, p []posting.Posting) ([]posting.Posting, Step, error) {
	left, dropped := keep(p, func(item posting.Posting) bool {
		loc := strings.ToLower(item.Location.String())
		return loc == "" || strings.Contains(loc, f.location)
	})

	if len(dropped) > 0 {
		f.logger.Debug("excluding postings by location",
			zap.String("location", f.location),
			zap.Strings("excluded_postings", dropped),
		)
	}

	return left, NewStep(f.Name(), len(p), len(left)), nil
}

func (f *locationFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"location": f.location}}
}

type recencyFilter struct {
	toggle
	days   int
	now    func() time.Time
	logger *zap.Logger
}

// NewRecency creates a filter that keeps postings published within the last
// days. Postings without a publication time are dropped. Zero days disables it.
func NewRecency(days int, logger *zap.Logger) Filter {
	f := &recencyFilter{days: days, now: time.Now, logger: nopIfNil(logger)}
	if days == 0 {
		f.Disable("no recency limit configured")
	}
	return f
}

func (f *recencyFilter) Name() string { return "recency" }

func (f *recencyFilter) Validate() error {
	if f.days < 0 {
		return fmt.Errorf("posted within days must not be negative, got %d", f.days)
	}
	return nil
}

func (f *recencyFilter) Apply(_ context.Context, p []posting.Posting) ([]posting.Posting, Step, error) {
	since := f.now().AddDate(0, 0, -f.days)

	left, dropped := keep(p, func(item posting.Posting) bool {
		return item.PostedAt != nil && !item.PostedAt.Before(since)
	})

	if len(dropped) > 0 {
		f.logger.Debug("excluding stale postings",
			zap.Time("since", since),
			zap.Strings("excluded_postings", dropped),
		)
	}

	return left, NewStep(f.Name(), len(p), len(left)), nil
}

func (f *recencyFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"days": strconv.Itoa(f.days)}}
}

type companiesFilter struct {
	toggle
	companies []string
	logger    *zap.Logger
}

// NewExcludedCompanies creates a filter that removes postings by the listed
// companies, compared case-insensitively.
func NewExcludedCompanies(companies []string, logger *zap.Logger) Filter {
	f := &companiesFilter{companies: posting.NormalizeSkills(companies), logger: nopIfNil(logger)}
	if len(f.companies) == 0 {
		f.Disable("no companies excluded")
	}
	return f
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate() error { return nil }

func (f *companiesFilter) Apply(_ context.Context, p []posting.Posting) ([]posting.Posting, Step, error) {
	excluded := make(map[string]struct{}, len(f.companies))
	for _, c := range f.companies {
		excluded[c] = struct{}{}
	}

	left, dropped := keep(p, func(item posting.Posting) bool {
		_, ok := excluded[strings.ToLower(strings.TrimSpace(item.Company))]
		return !ok
	})

	if len(dropped) > 0 {
		f.logger.Info("excluding postings by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(left)),
		)
	}

	return left, NewStep(f.Name(), len(p), len(left)), nil
}

func (f *companiesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"companies": strings.Join(f.companies, ",")}}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
