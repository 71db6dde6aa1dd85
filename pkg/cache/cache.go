package cache

import (
	"context"
	"time"
)

// Cache stores short-lived byte payloads keyed by string. Lookups and writes
// are best effort: a failed backend read is reported as a miss and a failed
// write is dropped. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}
