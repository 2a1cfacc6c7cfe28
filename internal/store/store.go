package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/jobmatch/internal/posting"
)

const (
	TypeSQLite   = "sqlite"
	TypeRedis    = "redis"
	TypePostgres = "postgres"
	TypeFile     = "file"
	TypeNop      = "nop"

	DefaultSession = "default"
)

// SeenStore persists the seen set of each tracking session. Saving only adds
// ids; a session shrinks only through DeleteSeen.
type SeenStore interface {
	LoadSeen(ctx context.Context, session string) (posting.SeenSet, error)
	SaveSeen(ctx context.Context, session string, seen posting.SeenSet) error
	DeleteSeen(ctx context.Context, session string) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Type string `mapstructure:"type"`
	// Path is used by the sqlite and file backends.
	Path string `mapstructure:"path"`
	// URL is used by the redis and postgres backends.
	URL string `mapstructure:"url"`
}

// New opens the backend described by cfg.
func New(ctx context.Context, cfg Config) (SeenStore, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Type))
	switch kind {
	case "", TypeSQLite:
		path := cfg.Path
		if strings.TrimSpace(path) == "" {
			path = "jobmatch.db"
		}
		return NewSQLiteStore(path)
	case TypeFile:
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, fmt.Errorf("store.path is required for the %s store", kind)
		}
		return NewFileStore(cfg.Path), nil
	case TypeRedis:
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("store.url is required for the %s store", kind)
		}
		return NewRedisStore(ctx, cfg.URL)
	case TypePostgres:
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("store.url is required for the %s store", kind)
		}
		return NewPostgresStore(ctx, cfg.URL)
	case TypeNop:
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

func sessionOrDefault(session string) string {
	if s := strings.TrimSpace(session); s != "" {
		return s
	}
	return DefaultSession
}
