package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/jobmatch/internal/posting"
)

// PostgresStore keeps seen posting ids in a shared PostgreSQL table, so
// several runners can track the same session.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ SeenStore = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL, verifies the connection and
// ensures the seen_postings table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS seen_postings (
		session    TEXT        NOT NULL,
		posting_id TEXT        NOT NULL,
		first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (session, posting_id)
	)`
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating seen_postings table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) LoadSeen(ctx context.Context, session string) (posting.SeenSet, error) {
	session = sessionOrDefault(session)

	rows, err := s.pool.Query(ctx, "SELECT posting_id FROM seen_postings WHERE session = $1", session)
	if err != nil {
		return nil, fmt.Errorf("loading seen postings for %s: %w", session, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning seen postings: %w", err)
	}

	return posting.NewSeenSet(ids...), nil
}

func (s *PostgresStore) SaveSeen(ctx context.Context, session string, seen posting.SeenSet) error {
	session = sessionOrDefault(session)
	if seen.Len() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range seen.IDs() {
		batch.Queue("INSERT INTO seen_postings (session, posting_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", session, id)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving seen postings for %s: %w", session, err)
	}
	return nil
}

func (s *PostgresStore) DeleteSeen(ctx context.Context, session string) error {
	session = sessionOrDefault(session)
	if _, err := s.pool.Exec(ctx, "DELETE FROM seen_postings WHERE session = $1", session); err != nil {
		return fmt.Errorf("deleting seen postings for %s: %w", session, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
