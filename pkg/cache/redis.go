package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "friday:cache:"

// RedisStore keeps entries as JSON strings. Retention bounds how long an
// entry survives for stale fallback; zero keeps entries until cleared.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewRedisStore(rdb *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, retention: retention}
}

// NewRedisClient dials lazily; the first command opens the connection.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func redisKey(k Key) string {
	return redisPrefix + k.String()
}

func (s *RedisStore) Get(ctx context.Context, k Key) (*Entry, error) {
	b, err := s.rdb.Get(ctx, redisKey(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", k, err)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", k, err)
	}
	return &e, nil
}

func (s *RedisStore) Put(ctx context.Context, k Key, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", k, err)
	}
	if err := s.rdb.Set(ctx, redisKey(k), b, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, k Key) error {
	return s.rdb.Del(ctx, redisKey(k)).Err()
}

// Clear deletes every key under the cache prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}
