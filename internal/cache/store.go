package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used across the application.
// The database-backed implementation is the default; Redis serves the same
// surface for multi-instance deployments.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error

	// DeleteExpired removes entries whose TTL has lapsed and reports how
	// many were dropped. Backends with native expiry return zero.
	DeleteExpired(ctx context.Context) (int64, error)
}
