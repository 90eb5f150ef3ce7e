// Package cache provides the sharded glyph cache used by the rasterizer.
//
// Entries are created at most once per key: concurrent misses on the same
// key serialize on a per-key lock while misses on other keys proceed
// independently. Entries are never evicted implicitly; the owner clears
// the cache when the font it belongs to is dropped.
package cache

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const (
	// ShardCount is the number of shards. Must be a power of 2.
	ShardCount = 16

	shardMask = ShardCount - 1
)

// Hasher computes a hash for a key. Used for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// HashUint64s computes the FNV-1a hash of a sequence of integers.
// It is a building block for composite-key hashers.
func HashUint64s(vals ...uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// ShardedCache is a thread-safe map from keys to immutable values with
// single-flight creation.
type ShardedCache[K comparable, V any] struct {
	shards [ShardCount]*shard[K, V]
	hasher Hasher[K]

	hits    atomic.Uint64
	misses  atomic.Uint64
	creates atomic.Uint64
}

// shard guards its maps with mu. The per-key locks are created lazily and
// removed when the last waiter leaves.
type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	locks   map[K]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSharded creates an empty cache using hasher for shard selection.
func NewSharded[K comparable, V any](hasher Hasher[K]) *ShardedCache[K, V] {
	c := &ShardedCache[K, V]{hasher: hasher}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{
			entries: make(map[K]V),
			locks:   make(map[K]*keyLock),
		}
	}
	return c
}

func (c *ShardedCache[K, V]) getShard(key K) *shard[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get returns the value stored under key.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// GetOrCreate returns the value stored under key, calling create on a
// miss. At most one create per key runs at a time; callers racing on the
// same key block and then observe the stored value. The value is stored
// only when create succeeds, and it is visible to other callers before
// the per-key lock is released. A failed create stores nothing and the
// next caller retries.
//
// The created flag reports whether this call ran create.
func (c *ShardedCache[K, V]) GetOrCreate(key K, create func() (V, error)) (v V, created bool, err error) {
	s := c.getShard(key)

	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, false, nil
	}

	kl := s.acquire(key)
	defer s.release(key, kl)

	// Re-check: another caller may have filled the entry while we waited.
	s.mu.RLock()
	v, ok = s.entries[key]
	s.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, false, nil
	}

	c.misses.Add(1)
	v, err = create()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.creates.Add(1)

	s.mu.Lock()
	s.entries[key] = v
	s.mu.Unlock()
	return v, true, nil
}

// acquire locks the per-key lock of key, creating it if needed.
func (s *shard[K, V]) acquire(key K) *keyLock {
	s.mu.Lock()
	kl := s.locks[key]
	if kl == nil {
		kl = &keyLock{}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	kl.mu.Lock()
	return kl
}

// release unlocks kl and drops it once no caller references it.
func (s *shard[K, V]) release(key K, kl *keyLock) {
	kl.mu.Unlock()

	s.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// Delete removes key and returns its value.
func (c *ShardedCache[K, V]) Delete(key K) (V, bool) {
	s := c.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return v, ok
}

// Clear removes all entries, calling release (if non-nil) for each.
func (c *ShardedCache[K, V]) Clear(release func(V)) {
	for _, s := range c.shards {
		s.mu.Lock()
		old := s.entries
		s.entries = make(map[K]V)
		s.mu.Unlock()

		if release != nil {
			for _, v := range old {
				release(v)
			}
		}
	}
}

// Len returns the total number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// pendingLocks returns the number of live per-key locks.
func (c *ShardedCache[K, V]) pendingLocks() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.locks)
		s.mu.RUnlock()
	}
	return total
}

// Stats holds cache counters.
type Stats struct {
	Len     int
	Hits    uint64
	Misses  uint64
	Creates uint64
	HitRate float64
}

// Stats returns current cache statistics.
func (c *ShardedCache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Len:     c.Len(),
		Hits:    hits,
		Misses:  misses,
		Creates: c.creates.Load(),
		HitRate: hitRate,
	}
}

// ResetStats resets all statistics counters to zero.
func (c *ShardedCache[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.creates.Store(0)
}
