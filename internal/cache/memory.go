package cache

import (
	"context"
	"sync"
)

// MemoryCache is a process-wide two-level map group -> key -> value.
// There is no eviction and no size bound.
type MemoryCache struct {
	mu     sync.RWMutex
	groups map[string]map[string][]byte
	config Config
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates a new in-memory cache with custom configuration
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	return &MemoryCache{
		groups: make(map[string]map[string][]byte),
		config: config,
	}
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, group, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, ok := m.groups[m.config.Prefix+group]
	if !ok {
		return nil, ErrCacheMiss{Group: group, Key: key}
	}
	value, ok := entries[key]
	if !ok {
		return nil, ErrCacheMiss{Group: group, Key: key}
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set stores a value in the cache
func (m *MemoryCache) Set(ctx context.Context, group, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	full := m.config.Prefix + group
	entries, ok := m.groups[full]
	if !ok {
		entries = make(map[string][]byte)
		m.groups[full] = entries
	}
	entries[key] = stored
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, group, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	full := m.config.Prefix + group
	if entries, ok := m.groups[full]; ok {
		delete(entries, key)
		if len(entries) == 0 {
			delete(m.groups, full)
		}
	}
	return nil
}

// ClearGroup removes every entry of a group
func (m *MemoryCache) ClearGroup(ctx context.Context, group string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.groups, m.config.Prefix+group)
	m.mu.Unlock()
	return nil
}

// Clear removes all values from the cache
func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.groups = make(map[string]map[string][]byte)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries in a group
func (m *MemoryCache) Len(group string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.groups[m.config.Prefix+group])
}
