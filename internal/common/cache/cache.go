package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	goredis "github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encoded values with a per-key TTL.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GetOrLoad returns the cached value for key or loads, stores and returns it.
// Cache failures other than a miss are ignored; the loader is the source of truth.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var out T
	if c != nil {
		if err := c.Get(ctx, key, &out); err == nil {
			return out, nil
		}
	}

	out, err := load()
	if err != nil {
		return out, err
	}

	if c != nil {
		_ = c.Set(ctx, key, out, ttl)
	}
	return out, nil
}

// RedisCache is backed by go-redis.
type RedisCache struct {
	client goredis.Cmdable
}

func NewRedisCache(client goredis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

type lruEntry struct {
	data      []byte
	expiresAt time.Time
}

// LRUCache is an in-process fallback used when Redis is disabled.
type LRUCache struct {
	mu    sync.Mutex
	items *lru.Cache[string, lruEntry]
	now   func() time.Time
}

func NewLRUCache(size int) (*LRUCache, error) {
	items, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUCache{items: items, now: time.Now}, nil
}

func (c *LRUCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	entry, ok := c.items.Get(key)
	if ok && !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.items.Remove(key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(entry.data, dest)
}

func (c *LRUCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	entry := lruEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.items.Add(key, entry)
	c.mu.Unlock()
	return nil
}

func (c *LRUCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		c.items.Remove(k)
	}
	c.mu.Unlock()
	return nil
}
