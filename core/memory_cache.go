package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type memoryCacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemorySessionCache is an in-process SessionCache with per-entry TTLs.
// Production deployments use the badger-backed cache; this one backs tests
// and single-node setups.
type MemorySessionCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryCacheEntry
}

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{
		now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]memoryCacheEntry{},
	}
}

// WithClock overrides the cache clock. Test hook.
func (c *MemorySessionCache) WithClock(now func() time.Time) *MemorySessionCache {
	if c != nil && now != nil {
		c.now = now
	}
	return c
}

func (c *MemorySessionCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if c == nil {
		return fmt.Errorf("core: session cache is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: cache key is required")
	}

	entry := memoryCacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemorySessionCache) Get(_ context.Context, key string) (string, bool, error) {
	if c == nil {
		return "", false, fmt.Errorf("core: session cache is not configured")
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *MemorySessionCache) Delete(_ context.Context, key string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("core: session cache is not configured")
	}

	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	return existed, nil
}

var _ SessionCache = (*MemorySessionCache)(nil)
