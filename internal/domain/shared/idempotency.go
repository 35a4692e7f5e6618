package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL is how long a processed payment key is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers keys of requests that were already applied,
// such as the Idempotency-Key header on a payment
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. It returns false when the key was
	// already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release forgets a key so that a failed request can be retried
	Release(ctx context.Context, key string) error

	Close() error
}
