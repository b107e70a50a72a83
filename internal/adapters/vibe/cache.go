package vibe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/scoring"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets how long cached scores live.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l logger.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cache memoizes another provider in Redis. Keys hash both texts so an
// edited survey never reuses a stale score. Redis failures fall through to
// the wrapped provider.
type Cache struct {
	client *redis.Client
	next   scoring.VibeProvider
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

// NewCache wraps next with a Redis cache.
func NewCache(client *redis.Client, next scoring.VibeProvider, opts ...CacheOption) *Cache {
	c := &Cache{
		client: client,
		next:   next,
		ttl:    24 * time.Hour,
		prefix: "match:vibe:",
		logger: logger.Get().Named("vibe_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key of a pair; it is symmetric in a and b.
func (c *Cache) Key(a, b model.Participant) string {
	ha, hb := digest(Profile(a)), digest(Profile(b))
	if hb < ha {
		ha, hb = hb, ha
	}
	return c.prefix + ha + ":" + hb
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:12])
}

// Vibe implements scoring.VibeProvider.
func (c *Cache) Vibe(ctx context.Context, a, b model.Participant) (float64, error) {
	key := c.Key(a, b)
	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if v, perr := strconv.ParseFloat(val, 64); perr == nil {
			metrics.RecordVibeLookup("cache", "hit")
			return Clamp(v), nil
		}
		c.logger.Warn(ctx, "discarding malformed cached vibe", logger.String("key", key))
	case errors.Is(err, redis.Nil):
		metrics.RecordVibeLookup("cache", "miss")
	default:
		metrics.RecordVibeLookup("cache", "error")
		c.logger.Warn(ctx, "vibe cache read failed", logger.Error(err))
	}

	v, err := c.next.Vibe(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if err := c.client.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "vibe cache write failed", logger.Error(err))
	}
	return v, nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
