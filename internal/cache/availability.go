package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const availabilityTTL = 30 * time.Second

// AvailabilityCache keeps the per-date occupied-slot list in redis so the
// public slot picker does not hammer postgres. A nil cache is a no-op, which
// is how the service runs when REDIS_ADDR is unset.
type AvailabilityCache struct {
	rdb *redis.Client
}

func NewAvailability(rdb *redis.Client) *AvailabilityCache {
	if rdb == nil {
		return nil
	}
	return &AvailabilityCache{rdb: rdb}
}

func key(date string) string { return "availability:" + date }

func (c *AvailabilityCache) Get(ctx context.Context, date string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(date)).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []string
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (c *AvailabilityCache) Set(ctx context.Context, date string, slots []string) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key(date), raw, availabilityTTL)
}

// Invalidate drops the cached entry after any write touching the date.
func (c *AvailabilityCache) Invalidate(ctx context.Context, date string) {
	if c == nil {
		return
	}
	c.rdb.Del(ctx, key(date))
}

// Ping verifies the redis connection at startup.
func (c *AvailabilityCache) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("cache disabled")
	}
	return c.rdb.Ping(ctx).Err()
}
