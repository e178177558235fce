package blog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	articlesCacheKey   = "essence:blog:articles"
	categoriesCacheKey = "essence:blog:categories"

	DefaultCacheTTL = 2 * time.Minute
)

// Cache holds backend list responses in redis. A nil *Cache is valid and
// caches nothing.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache pings rdb and returns nil if it is unreachable, so callers run
// uncached rather than failing.
func NewCache(ctx context.Context, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if rdb == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis connection failed, caching disabled", "error", err)
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger.Info("Redis cache connected for blog service")
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Cache) get(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}
	cached, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(cached), out); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", "key", key, "error", err)
		c.rdb.Del(ctx, key)
		return false
	}
	c.logger.Debug("Cache hit", "key", key)
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

func (c *Cache) invalidate(ctx context.Context, keys ...string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Cache invalidation failed", "keys", keys, "error", err)
	}
}
