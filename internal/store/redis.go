package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/jobmatch/internal/posting"
)

const redisKeyPrefix = "jobmatch:seen:"

// RedisStore keeps each session's seen ids in a Redis set.
type RedisStore struct {
	rdb *redis.Client
}

var _ SeenStore = (*RedisStore)(nil)

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

func redisKey(session string) string {
	return redisKeyPrefix + sessionOrDefault(session)
}

func (s *RedisStore) LoadSeen(ctx context.Context, session string) (posting.SeenSet, error) {
	ids, err := s.rdb.SMembers(ctx, redisKey(session)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading seen postings: %w", err)
	}
	return posting.NewSeenSet(ids...), nil
}

func (s *RedisStore) SaveSeen(ctx context.Context, session string, seen posting.SeenSet) error {
	if seen.Len() == 0 {
		return nil
	}

	ids := seen.IDs()
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}

	if err := s.rdb.SAdd(ctx, redisKey(session), members...).Err(); err != nil {
		return fmt.Errorf("saving seen postings: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteSeen(ctx context.Context, session string) error {
	if err := s.rdb.Del(ctx, redisKey(session)).Err(); err != nil {
		return fmt.Errorf("deleting seen postings: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
