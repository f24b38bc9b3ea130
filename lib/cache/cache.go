package cache

import (
	"github.com/ValentinKolb/dFacade/lib/cache/mapheap"
	"github.com/cespare/xxhash/v2"
	"sync"
	"sync/atomic"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	DefaultTTL        = 30 * time.Minute // expire-after-write
	DefaultMaxEntries = 100
	defaultShards     = 16
	shardingThreshold = 256 // caches smaller than this use a single shard (exact LRU)
)

// --------------------------------------------------------------------------
// Options & Stats
// --------------------------------------------------------------------------

// Options configures a Cache. The zero value uses the defaults.
type Options struct {
	TTL        time.Duration    // Time to live measured from the last write (0 = DefaultTTL, <0 = never expire)
	MaxEntries int              // Upper bound of cached entries (0 = DefaultMaxEntries)
	Shards     int              // Number of lock shards (0 = auto)
	Now        func() time.Time // Clock, replaceable in tests (nil = time.Now)
}

// Stats contains counters of a cache
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Entries     int    `json:"entries"`
}

// --------------------------------------------------------------------------
// Core cache structure
// --------------------------------------------------------------------------

type entry[V any] struct {
	value     V
	writtenAt time.Time
	gen       uint64 // generation of the write (or fill) that created the entry
}

// shard is a partition of the cache guarded by its own lock
type shard[V any] struct {
	mu       sync.Mutex
	items    map[string]*entry[V]
	lru      *mapheap.MapHeap[string] // priority = tick of last access
	tick     uint64
	floor    uint64 // generation of absent keys, raised on every removal
	capacity int
}

// Cache is a bounded in-process cache with expire-after-write semantics and
// approximate LRU eviction (exact LRU when the cache has a single shard).
//
// Every write and invalidation draws a new generation from a global counter. A reader that
// misses takes a Ticket before going to the backend and hands it to Fill afterwards: the
// fill only lands if no write or invalidation touched the key in between. This closes the
// race where a slow read would resurrect a value that was deleted while it was in flight.
//
// Thread-safety: All methods are thread-safe.
type Cache[V any] struct {
	shards []*shard[V]
	ttl    time.Duration
	now    func() time.Time
	gen    atomic.Uint64

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

// New creates a new cache with the given options
func New[V any](opts Options) *Cache[V] {
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Shards <= 0 {
		opts.Shards = 1
		if opts.MaxEntries >= shardingThreshold {
			opts.Shards = defaultShards
		}
	}
	if opts.Shards > opts.MaxEntries {
		opts.Shards = opts.MaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	// the sum of all shard capacities never exceeds MaxEntries
	capacity := opts.MaxEntries / opts.Shards

	c := &Cache[V]{
		shards: make([]*shard[V], opts.Shards),
		ttl:    opts.TTL,
		now:    opts.Now,
	}
	for i := range c.shards {
		c.shards[i] = &shard[V]{
			items:    make(map[string]*entry[V]),
			lru:      mapheap.New[string](),
			capacity: capacity,
		}
	}
	return c
}

// getShard returns the shard responsible for key
func (c *Cache[V]) getShard(key string) *shard[V] {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the live value for key. Expired entries are removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	s := c.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, ok := s.items[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	if c.expired(e) {
		s.remove(key, e)
		c.expirations.Add(1)
		c.misses.Add(1)
		return zero, false
	}

	s.touch(key)
	c.hits.Add(1)
	return e.value, true
}

// Ticket returns the current generation of key. Take it before a backend read
// and pass it to Fill once the read returned.
func (c *Cache[V]) Ticket(key string) uint64 {
	s := c.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation(key)
}

// Range calls fn for every live entry until fn returns false.
// The order is unspecified.
func (c *Cache[V]) Range(fn func(key string, value V) bool) {
	for _, s := range c.shards {
		s.mu.Lock()
		type kv struct {
			key   string
			value V
		}
		live := make([]kv, 0, len(s.items))
		for k, e := range s.items {
			if !c.expired(e) {
				live = append(live, kv{k, e.value})
			}
		}
		s.mu.Unlock()

		for _, item := range live {
			if !fn(item.key, item.value) {
				return
			}
		}
	}
}

// Len returns the number of cached entries (including expired ones not yet removed)
func (c *Cache[V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// Stats returns a snapshot of the cache counters
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Entries:     c.Len(),
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set stores value for key as the result of a write. Any previous entry is replaced
// and in-flight fills for key are invalidated. It returns the generation of the new entry.
func (c *Cache[V]) Set(key string, value V) uint64 {
	s := c.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	return c.write(s, key, value)
}

// SetIf stores value for key as the result of a write, if the generation of key still
// equals ticket. Like Set the entry gets a new generation, so fills that started
// before are rejected. It returns false if key was written or invalidated since the
// ticket was taken.
func (c *Cache[V]) SetIf(key string, value V, ticket uint64) bool {
	s := c.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation(key) != ticket {
		return false
	}
	c.write(s, key, value)
	return true
}

// Fill stores value for key as the result of a read, if the generation of key still equals ticket.
// It returns false if a write or invalidation happened since the ticket was taken.
func (c *Cache[V]) Fill(key string, value V, ticket uint64) bool {
	s := c.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation(key) != ticket {
		return false
	}

	s.items[key] = &entry[V]{
		value:     value,
		writtenAt: c.now(),
		gen:       ticket,
	}
	s.touch(key)
	c.evict(s)
	return true
}

// Invalidate removes the given keys and rejects fills that started before the call.
func (c *Cache[V]) Invalidate(keys ...string) {
	for _, key := range keys {
		s := c.getShard(key)
		s.mu.Lock()
		if e, ok := s.items[key]; ok {
			s.remove(key, e)
		}
		s.floor = c.gen.Add(1)
		s.mu.Unlock()
	}
}

// InvalidateFunc removes every key for which match returns true and rejects all fills
// that started before the call.
func (c *Cache[V]) InvalidateFunc(match func(key string) bool) {
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if match(k) {
				s.remove(k, e)
			}
		}
		s.floor = c.gen.Add(1)
		s.mu.Unlock()
	}
}

// Purge removes all entries
func (c *Cache[V]) Purge() {
	c.InvalidateFunc(func(string) bool { return true })
}

// --------------------------------------------------------------------------
// Helper (callers hold the shard lock)
// --------------------------------------------------------------------------

func (c *Cache[V]) write(s *shard[V], key string, value V) uint64 {
	gen := c.gen.Add(1)
	s.items[key] = &entry[V]{
		value:     value,
		writtenAt: c.now(),
		gen:       gen,
	}
	s.touch(key)
	c.evict(s)
	return gen
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.writtenAt) >= c.ttl
}

// evict removes least recently used entries until the shard is within its capacity
func (c *Cache[V]) evict(s *shard[V]) {
	for len(s.items) > s.capacity {
		item, ok := s.lru.PopMin()
		if !ok {
			return
		}
		if e, ok := s.items[item.Key]; ok {
			delete(s.items, item.Key)
			s.raiseFloor(e.gen)
			c.evictions.Add(1)
		}
	}
}

// generation of a key: the generation of its entry or the shard floor if absent
func (s *shard[V]) generation(key string) uint64 {
	if e, ok := s.items[key]; ok {
		return e.gen
	}
	return s.floor
}

// touch marks key as most recently used
func (s *shard[V]) touch(key string) {
	s.tick++
	s.lru.AddItem(key, s.tick)
}

// remove deletes an entry. The floor is raised to the entry's generation so that a
// ticket taken before the entry was written can never match again.
func (s *shard[V]) remove(key string, e *entry[V]) {
	delete(s.items, key)
	s.lru.RemoveByKey(key)
	s.raiseFloor(e.gen)
}

func (s *shard[V]) raiseFloor(gen uint64) {
	if gen > s.floor {
		s.floor = gen
	}
}
