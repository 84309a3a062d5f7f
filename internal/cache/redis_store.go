package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// DefaultRedisKey is the hash that holds all cache entries.
const DefaultRedisKey = "intentrouter:intent_cache"

// RedisStore keeps cache entries in a single Redis hash, one JSON value per key.
// It lets several router processes share one warm cache.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a store on client. An empty key uses DefaultRedisKey.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// LoadAll returns every stored entry. An undecodable value is returned with
// only its key set.
func (s *RedisStore) LoadAll(ctx context.Context) ([]models.CacheEntry, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load cache hash: %w", err)
	}

	entries := make([]models.CacheEntry, 0, len(values))
	for field, raw := range values {
		var e models.CacheEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			e = models.CacheEntry{}
		}
		e.Key = field
		entries = append(entries, e)
	}
	return entries, nil
}

// Upsert writes entries in one round trip.
func (s *RedisStore) Upsert(ctx context.Context, entries []models.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode cache entry %s: %w", e.Key, err)
		}
		values[e.Key] = raw
	}
	if err := s.client.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("upsert cache entries: %w", err)
	}
	return nil
}

// Delete removes entries by key.
func (s *RedisStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache entries: %w", err)
	}
	return nil
}

// Clear drops the whole hash.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear cache hash: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
