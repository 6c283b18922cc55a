package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	fetchedAt time.Time
	ttl       time.Duration
}

// Memory is an in-process cache. It is used by `pulse serve` when no
// shared backend is configured, and in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

// Name implements Cache.
func (m *Memory) Name() string { return "memory" }

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if ok && m.now().Sub(e.fetchedAt) < e.ttl {
		return e.value, true, nil
	}
	return nil, false, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{value: append([]byte(nil), value...), fetchedAt: m.now(), ttl: ttl}
	return nil
}

// Invalidate implements Cache.
func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memEntry)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, fresh or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
