package dedup

import (
	"reflect"
	"testing"

	"github.com/spigell/jobmatch/internal/posting"
)

func ids(items []posting.Posting) []string {
	out := make([]string, 0, len(items))
	for _, p := range items {
		out = append(out, p.ID)
	}
	return out
}

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		postings   []posting.Posting
		seen       []string
		expectIDs  []string
		expectSeen []string
	}{
		{
			name:       "drops seen postings",
			postings:   []posting.Posting{{ID: "a"}, {ID: "b"}},
			seen:       []string{"a"},
			expectIDs:  []string{"b"},
			expectSeen: []string{"a", "b"},
		},
		{
			name:       "keeps input order",
			postings:   []posting.Posting{{ID: "c"}, {ID: "a"}, {ID: "b"}},
			seen:       nil,
			expectIDs:  []string{"c", "a", "b"},
			expectSeen: []string{"a", "b", "c"},
		},
		{
			name:       "empty ids are always unseen and never recorded",
			postings:   []posting.Posting{{ID: ""}, {ID: "x"}, {ID: ""}},
			seen:       []string{"x"},
			expectIDs:  []string{"", ""},
			expectSeen: []string{"x"},
		},
		{
			name:       "repeated id in one batch is returned once",
			postings:   []posting.Posting{{ID: "a", Title: "first"}, {ID: "a", Title: "second"}},
			seen:       nil,
			expectIDs:  []string{"a"},
			expectSeen: []string{"a"},
		},
		{
			name:       "empty input",
			postings:   nil,
			seen:       []string{"z"},
			expectIDs:  []string{},
			expectSeen: []string{"z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seen := posting.NewSeenSet(tt.seen...)
			unseen, updated := Deduplicate(tt.postings, seen)

			if got := ids(unseen); !reflect.DeepEqual(got, tt.expectIDs) {
				t.Fatalf("expected ids %v, got %v", tt.expectIDs, got)
			}
			if got := updated.IDs(); !reflect.DeepEqual(got, tt.expectSeen) {
				t.Fatalf("expected seen %v, got %v", tt.expectSeen, got)
			}
			if seen.Len() != len(posting.NewSeenSet(tt.seen...)) {
				t.Fatal("input seen set was modified")
			}
		})
	}
}

func TestDeduplicateFirstOccurrenceWins(t *testing.T) {
	unseen, _ := Deduplicate([]posting.Posting{{ID: "a", Title: "first"}, {ID: "a", Title: "second"}}, nil)
	if len(unseen) != 1 || unseen[0].Title != "first" {
		t.Fatalf("unexpected postings: %+v", unseen)
	}
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	postings := []posting.Posting{{ID: "a"}, {ID: "b"}, {ID: ""}, {ID: "c"}, {ID: "b"}}

	first, seen := Deduplicate(postings, posting.NewSeenSet("c"))
	second, seenAgain := Deduplicate(first, seen)

	for _, p := range second {
		if p.ID != "" {
			t.Fatalf("expected only id-less postings on the second pass, got %q", p.ID)
		}
	}
	if !reflect.DeepEqual(seen.IDs(), seenAgain.IDs()) {
		t.Fatalf("seen set changed on second pass: %v vs %v", seen.IDs(), seenAgain.IDs())
	}
}
