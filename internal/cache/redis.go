package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/trowelworks/strata/internal/db"
)

// Redis is a KV-backed response cache. Clear works by bumping a generation
// counter rather than scanning keys; stale entries age out via TTL.
type Redis struct {
	kv      db.KVStore
	prefix  string
	ttl     time.Duration
	gen     atomic.Int64
	genInit atomic.Bool
}

// NewRedis creates a Redis-backed cache with the given key prefix and TTL.
func NewRedis(kv db.KVStore, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{kv: kv, prefix: prefix, ttl: ttl}
}

// Get returns the cached payload for key, if present.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.kv.Get(ctx, c.storageKey(ctx, key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores the payload. Errors are dropped: cache population is
// fire-and-forget.
func (c *Redis) Set(ctx context.Context, key string, value []byte) {
	_ = c.kv.SetWithTTL(ctx, c.storageKey(ctx, key), value, c.ttl)
}

// Clear invalidates every cached response by advancing the generation.
func (c *Redis) Clear(ctx context.Context) error {
	gen, err := c.kv.Incr(ctx, c.genKey())
	if err != nil {
		return fmt.Errorf("advance cache generation: %w", err)
	}
	c.genInit.Store(true)
	c.gen.Store(gen)
	return nil
}

// generation returns the current cache generation, reading the persisted
// counter on first use. Without that read, a restarted process would start
// at generation zero and serve entries cleared before the restart.
func (c *Redis) generation(ctx context.Context) int64 {
	if !c.genInit.Load() {
		data, err := c.kv.Get(ctx, c.genKey())
		switch {
		case err == nil:
			if n, perr := strconv.ParseInt(string(data), 10, 64); perr == nil && c.genInit.CompareAndSwap(false, true) {
				c.gen.Store(n)
			}
		case errors.Is(err, db.ErrKeyNotFound):
			// Never cleared: generation zero is correct.
			c.genInit.Store(true)
		}
		// Other errors leave genInit unset so the next call retries.
	}
	return c.gen.Load()
}

func (c *Redis) genKey() string {
	return c.prefix + ":gen"
}

func (c *Redis) storageKey(ctx context.Context, key string) string {
	sum := sha1.Sum([]byte(key))
	return c.prefix + ":" + strconv.FormatInt(c.generation(ctx), 10) + ":" + hex.EncodeToString(sum[:])
}
