// Package counter stores the advisory operational tallies (visits, boards,
// applications, teams) in Redis.
package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis implements recruit.Counters with INCR / GET.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis returns a Redis counter store. Keys are prefix + counter name.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// Increment atomically adds one to name, creating it at 1.
func (r *Redis) Increment(ctx context.Context, name string) error {
	if err := r.rdb.Incr(ctx, r.prefix+name).Err(); err != nil {
		return fmt.Errorf("incr %s: %w", name, err)
	}
	return nil
}

// Get returns the value of name; a missing key reads as zero.
func (r *Redis) Get(ctx context.Context, name string) (int64, error) {
	v, err := r.rdb.Get(ctx, r.prefix+name).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", name, err)
	}
	return v, nil
}
