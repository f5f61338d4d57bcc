package checkin

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"micecheckin/pkg/cache"
)

// TokenStore maps live dynamic tokens to the session they were issued for.
type TokenStore interface {
	Put(ctx context.Context, token string, sessionID int64, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (int64, bool, error)
}

type MemoryTokenStore struct {
	cache *cache.Memory[int64]
}

func NewMemoryTokenStore(c *cache.Memory[int64]) *MemoryTokenStore {
	return &MemoryTokenStore{cache: c}
}

func (s *MemoryTokenStore) Put(_ context.Context, token string, sessionID int64, ttl time.Duration) error {
	s.cache.Set(token, sessionID, ttl)
	return nil
}

func (s *MemoryTokenStore) Lookup(_ context.Context, token string) (int64, bool, error) {
	id, ok := s.cache.Get(token)
	return id, ok, nil
}

// RedisTokenStore shares tokens between several API instances.
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "qr:"
	}
	return &RedisTokenStore{client: client, prefix: prefix}
}

func (s *RedisTokenStore) Put(ctx context.Context, token string, sessionID int64, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+token, sessionID, ttl).Err()
}

func (s *RedisTokenStore) Lookup(ctx context.Context, token string) (int64, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
