package cache

import (
	"context"
	"time"

	"github.com/salasarservices/pulse/internal/store"
)

// Bolt caches responses in the local store's responses bucket, so entries
// survive across CLI invocations.
type Bolt struct {
	st  *store.Store
	now func() time.Time
}

// NewBolt returns a cache on st.
func NewBolt(st *store.Store) *Bolt {
	return &Bolt{st: st, now: time.Now}
}

// Name implements Cache.
func (b *Bolt) Name() string { return "bolt" }

// Get implements Cache.
func (b *Bolt) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, _, ok, err := b.st.GetResponse(key, b.now())
	return v, ok, err
}

// Set implements Cache.
func (b *Bolt) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return b.st.PutResponse(key, value, ttl)
}

// Invalidate implements Cache.
func (b *Bolt) Invalidate(context.Context) error {
	return b.st.ClearBucket("responses")
}
