package rate

import (
	"context"
	"time"
)

// Store holds window counters.
type Store interface {
	// Increment atomically adds one to the counter under key unless it already
	// exceeds ceiling, and returns the resulting count. An absent or expired
	// key starts at one and lives for ttl; an existing key keeps its remaining
	// lifetime.
	Increment(ctx context.Context, key string, ceiling int64, ttl time.Duration) (int64, error)
}
