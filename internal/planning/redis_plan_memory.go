package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loomlabs/loom/internal/plan"
)

const defaultPlanKeyPrefix = "loom:plans:"

// RedisPlanCache is a PlanMemory backed by Redis, letting multiple agent
// processes share one plan cache. Entries expire after TTL so plans for
// goal shapes that stop recurring age out on their own.
type RedisPlanCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// RedisPlanCacheOption configures a RedisPlanCache.
type RedisPlanCacheOption func(*RedisPlanCache)

// WithPlanKeyPrefix overrides the Redis key prefix.
func WithPlanKeyPrefix(prefix string) RedisPlanCacheOption {
	return func(c *RedisPlanCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithPlanTTL sets the expiry for cached plans. Zero means no expiry.
func WithPlanTTL(ttl time.Duration) RedisPlanCacheOption {
	return func(c *RedisPlanCache) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// NewRedisPlanCache creates a plan cache over the given Redis client.
func NewRedisPlanCache(client redis.Cmdable, opts ...RedisPlanCacheOption) *RedisPlanCache {
	c := &RedisPlanCache{
		client: client,
		prefix: defaultPlanKeyPrefix,
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindSimilar looks up a cached plan by goal-shape key.
func (c *RedisPlanCache) FindSimilar(ctx context.Context, g *plan.Goal) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.key(g)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("plan cache lookup: %w", err)
	}

	var steps []string
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, false, fmt.Errorf("plan cache decode: %w", err)
	}
	return steps, true, nil
}

// Record stores successful plans and evicts the cached entry on failure.
func (c *RedisPlanCache) Record(ctx context.Context, g *plan.Goal, steps []string, success bool) error {
	key := c.key(g)

	if !success {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("plan cache evict: %w", err)
		}
		return nil
	}

	encoded, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("plan cache encode: %w", err)
	}

	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return fmt.Errorf("plan cache store: %w", err)
	}
	return nil
}

func (c *RedisPlanCache) key(g *plan.Goal) string {
	return c.prefix + GoalKey(g)
}
