// Package cache memoizes upstream responses for a fixed TTL.
//
// Entries are keyed by a function identifier plus the JSON encoding of its
// arguments, so identical calls within the TTL return the stored payload
// without touching the network. Invalidate drops every entry at once; there
// is no per-key invalidation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTTL is the lifetime of a cached response.
const DefaultTTL = time.Hour

// Cache is a byte-oriented TTL store.
type Cache interface {
	// Get returns the fresh value under key. ok is false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every entry.
	Invalidate(ctx context.Context) error
	// Name identifies the backend ("memory", "bolt", "redis").
	Name() string
}

// Key builds the cache key for a call of fn with args:
// fn:<id>|args:<json>.
func Key(fn string, args ...interface{}) string {
	b, err := json.Marshal(args)
	if err != nil {
		// Unencodable arguments still need a stable, distinct key.
		return fmt.Sprintf("fn:%s|args:%#v", fn, args)
	}
	return "fn:" + fn + "|args:" + string(b)
}

// Memo returns the cached value under key or calls load and caches its
// result. Only successful loads are stored, so a failure is retried on the
// next call. Cache errors are logged and bypassed. hit reports whether the
// value came from c.
func Memo[T any](ctx context.Context, c Cache, ttl time.Duration, key string, load func(context.Context) (T, error)) (value T, hit bool, err error) {
	if c != nil {
		b, ok, gerr := c.Get(ctx, key)
		switch {
		case gerr != nil:
			slog.Warn("cache read failed", "cache", c.Name(), "key", key, "err", gerr)
		case ok:
			if uerr := json.Unmarshal(b, &value); uerr == nil {
				return value, true, nil
			}
			slog.Debug("discarding undecodable cache entry", "cache", c.Name(), "key", key)
		}
	}

	value, err = load(ctx)
	if err != nil {
		return value, false, err
	}

	if c != nil {
		if b, merr := json.Marshal(value); merr != nil {
			slog.Warn("cache encode failed", "key", key, "err", merr)
		} else if serr := c.Set(ctx, key, b, ttl); serr != nil {
			slog.Warn("cache write failed", "cache", c.Name(), "key", key, "err", serr)
		}
	}
	return value, false, nil
}

// ─── Bypass ───────────────────────────────────────────────────────────────────

// writeOnly skips reads but still stores fresh values, so a --no-cache run
// refreshes what it fetched.
type writeOnly struct {
	Cache
}

// WriteOnly wraps c so every Get misses.
func WriteOnly(c Cache) Cache {
	return writeOnly{Cache: c}
}

func (writeOnly) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}
