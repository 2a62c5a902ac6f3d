package announce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache maps fingerprints to clip URLs.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (string, bool, error)
	Set(ctx context.Context, fingerprint, url string, ttl time.Duration) error
}

type memoryEntry struct {
	url     string
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// memoryCacheLimit bounds the in-process cache; a full cache evicts an
// arbitrary entry once the expired ones are gone.
const memoryCacheLimit = 4096

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	limit   int
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), limit: memoryCacheLimit, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[fingerprint]
	if !ok {
		return "", false, nil
	}
	if entry.expired(c.now()) {
		delete(c.entries, fingerprint)
		return "", false, nil
	}
	return entry.url, true, nil
}

func (c *MemoryCache) Set(_ context.Context, fingerprint, url string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
	if _, ok := c.entries[fingerprint]; !ok && len(c.entries) >= c.limit {
		for key := range c.entries {
			delete(c.entries, key)
			break
		}
	}
	entry := memoryEntry{url: url}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	c.entries[fingerprint] = entry
	return nil
}

const redisKeyPrefix = "qms:announce:"

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	url, err := c.client.Get(ctx, redisKeyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

func (c *RedisCache) Set(ctx context.Context, fingerprint, url string, ttl time.Duration) error {
	return c.client.Set(ctx, redisKeyPrefix+fingerprint, url, ttl).Err()
}
