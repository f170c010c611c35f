package cache

import (
	"context"
	"time"
)

// Cache holds short-lived host data: session tokens and rendered token
// metadata. Engine state never lives here.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// GetOrSet retrieves a value or computes and stores it if missing.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	// Clear removes every entry under this cache's namespace.
	Clear(ctx context.Context) error
}

// Purger is implemented by caches that expire entries on demand.
type Purger interface {
	// Purge drops expired entries and reports how many went.
	Purge() int
}

// CacheError is a sentinel cache failure.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)
