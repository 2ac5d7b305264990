// Package cache provides the group-partitioned read cache kept coherent by
// the content engine. Entries have no TTL; they live until the operation
// that changes the underlying truth invalidates them.
package cache

import (
	"context"
	"errors"
)

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value. A missing entry returns ErrCacheMiss.
	Get(ctx context.Context, group, key string) ([]byte, error)

	// Set stores a value, replacing any previous value atomically
	Set(ctx context.Context, group, key string, value []byte) error

	// Delete removes one entry
	Delete(ctx context.Context, group, key string) error

	// ClearGroup removes every entry of a group
	ClearGroup(ctx context.Context, group string) error

	// Clear removes every entry of every group
	Clear(ctx context.Context) error
}

// Config holds common configuration for cache backends
type Config struct {
	// Prefix is prepended to every group name
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		Prefix: "contenttype:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Group string
	Key   string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Group + "/" + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}
