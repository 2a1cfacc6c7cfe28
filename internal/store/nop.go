package store

import (
	"context"

	"github.com/spigell/jobmatch/internal/posting"
)

// NopStore remembers nothing. Every run sees all postings as new.
type NopStore struct{}

var _ SeenStore = NopStore{}

func (NopStore) LoadSeen(context.Context, string) (posting.SeenSet, error) {
	return posting.NewSeenSet(), nil
}

func (NopStore) SaveSeen(context.Context, string, posting.SeenSet) error { return nil }

func (NopStore) DeleteSeen(context.Context, string) error { return nil }

func (NopStore) Close() error { return nil }
