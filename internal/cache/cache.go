package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched payload is served before it is considered stale.
const DefaultTTL = 5 * time.Minute

// Cache defines the interface for payload caching implementations.
// Get returns the stored payload if present and not stale, Set stores it with TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// InMemoryCache implements Cache using a process-lifetime map.
// Stale entries are ignored on read but never removed; a later Set for the
// same key supersedes them. There is no capacity bound.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	now  func() time.Time
}

// cacheEntry stores a payload with the time it was written.
type cacheEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

// NewInMemoryCache creates a new, empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get returns (payload, true, nil) when an entry exists and its age is below its TTL.
// Returns (nil, false, nil) on miss or staleness.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(entry.storedAt) >= entry.ttl {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set always overwrites the entry for key.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}
	return nil
}

// Len returns the number of stored entries, stale ones included.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// GetJSON reads key from c and decodes it into T.
// A payload that no longer decodes is reported as an error, not a hit.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var out T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return out, true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON[T any](ctx context.Context, c Cache, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
