package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReferenceCache implements ports.ProcessedReferenceCache using Redis. It is
// the fast path only: a cache miss falls through to the ledger query, and a
// cache failure is tolerated by the workflow.
type ReferenceCache struct {
	client *goredis.Client
	prefix string
}

// NewReferenceCache creates a Redis-backed processed-reference cache.
func NewReferenceCache(client *goredis.Client) *ReferenceCache {
	return &ReferenceCache{
		client: client,
		prefix: "processed_ref:",
	}
}

// Seen reports whether the payment reference was marked processed recently.
func (c *ReferenceCache) Seen(ctx context.Context, paymentReference string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+paymentReference).Result()
	if err != nil {
		return false, fmt.Errorf("redis reference seen: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records a reference as applied, with TTL.
func (c *ReferenceCache) MarkProcessed(ctx context.Context, paymentReference string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+paymentReference, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis reference mark: %w", err)
	}
	return nil
}
