package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/nmezhenskyi/gastronomy-api/internal/keylock"
)

const (
	// DefaultMaxCounters is the number of live counters the memory store holds
	// before admission starts rejecting new clients.
	DefaultMaxCounters = 1 << 18
	counterFactor      = 10
)

// ErrCounterDropped is returned when the cache refuses to keep a counter.
var ErrCounterDropped = errors.New("rate counter dropped")

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory on a ristretto cache. Every
// counter costs one unit, so MaxCost is a count of live counters.
type MemoryStore struct {
	cache *ristretto.Cache[string, memoryEntry]
	locks *keylock.Map
	now   func() time.Time
}

// MemoryStoreConfig sizes the cache. MaxCounters defaults to
// DefaultMaxCounters and NumCounters to ten times MaxCounters.
type MemoryStoreConfig struct {
	MaxCounters int64
	NumCounters int64
	Now         func() time.Time
}

// NewMemoryStore builds a MemoryStore.
func NewMemoryStore(cfg MemoryStoreConfig) (*MemoryStore, error) {
	if cfg.MaxCounters <= 0 {
		cfg.MaxCounters = DefaultMaxCounters
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = cfg.MaxCounters * counterFactor
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, memoryEntry]{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCounters,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create rate cache: %w", err)
	}
	return &MemoryStore{cache: cache, locks: keylock.New(), now: cfg.Now}, nil
}

// Get returns the counter under key and its remaining lifetime.
func (m *MemoryStore) Get(_ context.Context, key string) (int64, time.Duration, bool, error) {
	entry, ok := m.lookup(key)
	if !ok {
		return 0, 0, false, nil
	}
	return entry.count, entry.expiresAt.Sub(m.now()), true, nil
}

func (m *MemoryStore) lookup(key string) (memoryEntry, bool) {
	entry, ok := m.cache.Get(key)
	if !ok || !entry.expiresAt.After(m.now()) {
		return memoryEntry{}, false
	}
	return entry, true
}

// Increment implements Store. Writers to one key are serialised, and the
// write is flushed before the lock is released so the next reader sees it.
func (m *MemoryStore) Increment(_ context.Context, key string, ceiling int64, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, errors.New("rate counter ttl must be positive")
	}
	unlock := m.locks.Lock(key)
	defer unlock()

	now := m.now()
	entry, ok := m.lookup(key)
	if !ok {
		entry = memoryEntry{expiresAt: now.Add(ttl)}
	}
	if entry.count > ceiling {
		return entry.count, nil
	}
	entry.count++

	if !m.cache.SetWithTTL(key, entry, 1, entry.expiresAt.Sub(now)) {
		return 0, ErrCounterDropped
	}
	m.cache.Wait()
	stored, ok := m.cache.Get(key)
	if (ok && stored.count != entry.count) || (!ok && m.now().Before(entry.expiresAt)) {
		return 0, ErrCounterDropped
	}
	return entry.count, nil
}

// Close stops the cache's background goroutines.
func (m *MemoryStore) Close() {
	m.cache.Close()
}
