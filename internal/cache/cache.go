// Package cache provides the key/value cache used for catalog reads and the
// access token revocation list.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an expiry. A ttl of zero keeps the
// value until it is deleted.
type Cache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
