// Package cache stores rendered images keyed by their input and settings.
//
// Backends implement [Cache]: [NullCache] disables caching, [FileCache]
// keeps entries on disk for the CLI, [RedisCache] and [MongoCache] back a
// shared cache for the HTTP server. A [Keyer] derives keys from the render
// input and the flattened settings.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Clearer is implemented by caches that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) error
}
