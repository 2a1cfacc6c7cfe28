package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/spigell/jobmatch/internal/posting"
)

// SQLiteStore keeps seen posting ids in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ SeenStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// seen_postings table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS seen_postings (
		session    TEXT NOT NULL,
		posting_id TEXT NOT NULL,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session, posting_id)
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating seen_postings table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadSeen(ctx context.Context, session string) (posting.SeenSet, error) {
	session = sessionOrDefault(session)

	rows, err := s.db.QueryContext(ctx, "SELECT posting_id FROM seen_postings WHERE session = ?", session)
	if err != nil {
		return nil, fmt.Errorf("loading seen postings for %s: %w", session, err)
	}
	defer rows.Close()

	seen := posting.NewSeenSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning seen posting: %w", err)
		}
		seen.Add(id)
	}

	return seen, rows.Err()
}

// SaveSeen records every id of seen. Existing ids are left untouched.
func (s *SQLiteStore) SaveSeen(ctx context.Context, session string, seen posting.SeenSet) error {
	session = sessionOrDefault(session)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO seen_postings (session, posting_id) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range seen.IDs() {
		if _, err := stmt.ExecContext(ctx, session, id); err != nil {
			return fmt.Errorf("marking posting %s as seen: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seen postings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSeen(ctx context.Context, session string) error {
	session = sessionOrDefault(session)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM seen_postings WHERE session = ?", session); err != nil {
		return fmt.Errorf("deleting seen postings for %s: %w", session, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
