package identity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"finance-tower/pkg/logger"
)

// Resolver is anything that can map user ids to display names.
type Resolver interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

// CachedDirectory fronts a Resolver with Redis. Cache failures fall through
// to the underlying resolver; a nil client disables caching entirely.
type CachedDirectory struct {
	next   Resolver
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCachedDirectory(next Resolver, rdb *redis.Client, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedDirectory{next: next, rdb: rdb, prefix: "finance:user_name:", ttl: ttl}
}

func (c *CachedDirectory) Names(ctx context.Context, ids []string) (map[string]string, error) {
	if c.rdb == nil || len(ids) == 0 {
		return c.next.Names(ctx, ids)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.prefix + id
	}

	out := make(map[string]string, len(ids))
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.From(ctx).Warn("name cache read failed", "err", err)
		return c.next.Names(ctx, ids)
	}

	misses := make([]string, 0, len(ids))
	for i, id := range ids {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				out[id] = s
				continue
			}
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	found, err := c.next.Names(ctx, misses)
	if err != nil {
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for id, name := range found {
		out[id] = name
		pipe.Set(ctx, c.prefix+id, name, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.From(ctx).Warn("name cache write failed", "err", err)
	}
	return out, nil
}
