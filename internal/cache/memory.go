package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process response cache with TTL eviction on read.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// NewMemory creates an in-memory cache.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry)}
}

// Get returns the cached payload for key, if present and fresh.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// Set stores the payload.
func (c *Memory) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{data: value, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Memory) Clear(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}
