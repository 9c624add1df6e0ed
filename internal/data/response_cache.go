package data

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"openshortlink/internal/biz"
)

// Compile-time interface checks
var (
	_ biz.ResponseCache = (*redisResponseCache)(nil)
	_ biz.ResponseCache = (*noopResponseCache)(nil)
)

// redisResponseCache stores serialized analytics answers in Redis. Failed
// reads are misses and failed writes are logged only: the cache never fails a
// request. Concurrent writes for the same key are allowed; last write wins.
type redisResponseCache struct {
	rdb *redis.Client
	log *log.Helper
}

// NewResponseCache returns a Redis-backed cache, or a no-op cache when no
// Redis client is configured.
func NewResponseCache(d *Data, logger log.Logger) biz.ResponseCache {
	if d.rdb == nil {
		return &noopResponseCache{}
	}
	return &redisResponseCache{rdb: d.rdb, log: log.NewHelper(logger)}
}

func (c *redisResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithContext(ctx).Warnf("cache read for %s failed: %v", key, err)
		}
		return nil, false
	}
	return payload, true
}

func (c *redisResponseCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.log.WithContext(ctx).Warnf("cache write for %s failed: %v", key, err)
	}
}

// noopResponseCache is used when Redis is not available.
type noopResponseCache struct{}

func (c *noopResponseCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (c *noopResponseCache) Set(context.Context, string, []byte, time.Duration) {}
