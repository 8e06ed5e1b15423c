package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper makes event handlers idempotent across redeliveries.
type Deduper struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl}
}

// AcquireOnce returns true the first time handler sees eventID.
func (d *Deduper) AcquireOnce(ctx context.Context, handler, eventID string) bool {
	ok, err := d.rdb.SetNX(ctx, FormatDedupKey(handler, eventID), 1, d.ttl).Result()
	if err != nil {
		// Redis 挂了？为了安全：当 redis 不可用时，不阻止处理，返回 true
		return true
	}
	return ok
}

// Release forgets eventID so a redelivery is processed again.
func (d *Deduper) Release(ctx context.Context, handler, eventID string) error {
	return d.rdb.Del(ctx, FormatDedupKey(handler, eventID)).Err()
}

func FormatDedupKey(handler, eventID string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, eventID)
}
