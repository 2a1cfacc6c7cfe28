package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spigell/jobmatch/internal/posting"
)

// FileStore keeps one plain-text file per session in a directory, one posting
// id per line.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ SeenStore = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(session string) string {
	name := strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(sessionOrDefault(session))
	return filepath.Join(s.dir, name+".seen")
}

func (s *FileStore) LoadSeen(_ context.Context, session string) (posting.SeenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(session)
}

func (s *FileStore) load(session string) (posting.SeenSet, error) {
	f, err := os.Open(s.path(session))
	if errors.Is(err, os.ErrNotExist) {
		return posting.NewSeenSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening seen file: %w", err)
	}
	defer f.Close()

	seen := posting.NewSeenSet()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		seen.Add(strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seen file: %w", err)
	}
	return seen, nil
}

// SaveSeen merges seen into the session file and rewrites it atomically.
func (s *FileStore) SaveSeen(_ context.Context, session string, seen posting.SeenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(session)
	if err != nil {
		return err
	}
	merged := existing.Union(seen)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating seen directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".seen-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, id := range merged.IDs() {
		if _, err := w.WriteString(id + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("writing seen file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing seen file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing seen file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(session)); err != nil {
		return fmt.Errorf("replacing seen file: %w", err)
	}
	return nil
}

func (s *FileStore) DeleteSeen(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(session)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting seen file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
