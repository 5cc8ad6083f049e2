package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudbday/cloudbday/internal/observability/logger"
)

// Tiered combines an in-process L1 with a shared L2.
// Get checks L1 first, then L2, backfilling L1 on an L2 hit.
// Set and Delete operate on both levels.
type Tiered struct {
	l1    Cache
	l2    Cache
	l1TTL time.Duration
}

// NewTiered creates a tiered cache. l1TTL caps how long any entry lives in L1,
// which bounds how stale another instance's invalidation can leave this one.
func NewTiered(l1, l2 Cache, l1TTL time.Duration) *Tiered {
	return &Tiered{l1: l1, l2: l2, l1TTL: l1TTL}
}

// Get checks L1, then L2.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		if err := c.l1.Set(ctx, key, val, c.l1TTL); err != nil {
			slog.DebugContext(ctx, "l1 backfill failed", logger.String("key", key), logger.Error(err))
		}
		return val, true, nil
	}

	return nil, false, nil
}

// Set writes L2 first so that L1 never holds a value L2 rejected.
func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, value, c.l1Duration(ttl))
}

// Delete removes from both levels.
func (c *Tiered) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}

func (c *Tiered) l1Duration(ttl time.Duration) time.Duration {
	if ttl == 0 || ttl > c.l1TTL {
		return c.l1TTL
	}
	return ttl
}
