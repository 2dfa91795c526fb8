// Package cache defines the response cache: an explicit Get/Set/Clear
// interface injected into the pipeline, owned by the caller. Keys are the
// canonical URLs of normalized requests.
package cache

import "context"

// Cache memoizes composed-query results. Set is best-effort: failures are
// swallowed, a cache write must never fail a request.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Clear(ctx context.Context) error
}

// Nop is a disabled cache.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }

// Set discards the value.
func (Nop) Set(context.Context, string, []byte) {}

// Clear does nothing.
func (Nop) Clear(context.Context) error { return nil }
