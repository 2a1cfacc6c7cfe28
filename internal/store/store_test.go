package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spigell/jobmatch/internal/posting"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// exerciseStore runs the behaviour every persistent backend must share.
func exerciseStore(t *testing.T, s SeenStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.LoadSeen(ctx, "work")
	if err != nil {
		t.Fatalf("LoadSeen: %v", err)
	}
	if empty.Len() != 0 {
		t.Fatalf("expected empty set for a new session, got %v", empty.IDs())
	}

	if err := s.SaveSeen(ctx, "work", posting.NewSeenSet("a", "b")); err != nil {
		t.Fatalf("SaveSeen: %v", err)
	}
	// saving a subset must not shrink the session
	if err := s.SaveSeen(ctx, "work", posting.NewSeenSet("b", "c")); err != nil {
		t.Fatalf("SaveSeen: %v", err)
	}
	if err := s.SaveSeen(ctx, "home", posting.NewSeenSet("z")); err != nil {
		t.Fatalf("SaveSeen: %v", err)
	}

	got, err := s.LoadSeen(ctx, "work")
	if err != nil {
		t.Fatalf("LoadSeen: %v", err)
	}
	if !reflect.DeepEqual(got.IDs(), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected ids: %v", got.IDs())
	}

	if err := s.DeleteSeen(ctx, "work"); err != nil {
		t.Fatalf("DeleteSeen: %v", err)
	}
	got, err = s.LoadSeen(ctx, "work")
	if err != nil {
		t.Fatalf("LoadSeen: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected deleted session to be empty, got %v", got.IDs())
	}

	other, err := s.LoadSeen(ctx, "home")
	if err != nil {
		t.Fatalf("LoadSeen: %v", err)
	}
	if !reflect.DeepEqual(other.IDs(), []string{"z"}) {
		t.Fatalf("deleting one session affected another: %v", other.IDs())
	}

	// deleting a missing session is not an error
	if err := s.DeleteSeen(ctx, "missing"); err != nil {
		t.Fatalf("DeleteSeen on missing session: %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newSQLite(t))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.SaveSeen(ctx, "", posting.NewSeenSet("job-1")); err != nil {
		t.Fatalf("SaveSeen: %v", err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadSeen(ctx, DefaultSession)
	if err != nil {
		t.Fatalf("LoadSeen: %v", err)
	}
	if !got.Has("job-1") {
		t.Fatal("expected id to survive reopen under the default session")
	}
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "seen")))
}

func TestFileStoreFormat(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	if err := s.SaveSeen(context.Background(), "", posting.NewSeenSet("b", "a")); err != nil {
		t.Fatalf("SaveSeen: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultSession+".seen"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Fatalf("unexpected file content: %q", data)
	}
}

func TestNopStore(t *testing.T) {
	ctx := context.Background()
	s := NopStore{}

	if err := s.SaveSeen(ctx, "x", posting.NewSeenSet("a")); err != nil {
		t.Fatalf("SaveSeen: %v", err)
	}
	got, err := s.LoadSeen(ctx, "x")
	if err != nil || got.Len() != 0 {
		t.Fatalf("expected empty set, got %v, %v", got, err)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "sqlite", cfg: Config{Type: "sqlite", Path: filepath.Join(dir, "a.db")}},
		{name: "default is sqlite", cfg: Config{Path: filepath.Join(dir, "b.db")}},
		{name: "file", cfg: Config{Type: "FILE", Path: dir}},
		{name: "file without path", cfg: Config{Type: "file"}, wantErr: true},
		{name: "nop", cfg: Config{Type: "nop"}},
		{name: "redis without url", cfg: Config{Type: "redis"}, wantErr: true},
		{name: "postgres without url", cfg: Config{Type: "postgres"}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s.Close()
		})
	}
}

func TestRedisKey(t *testing.T) {
	if got := redisKey(""); got != "jobmatch:seen:default" {
		t.Fatalf("unexpected key: %q", got)
	}
	if got := redisKey(" work "); got != "jobmatch:seen:work" {
		t.Fatalf("unexpected key: %q", got)
	}
}
