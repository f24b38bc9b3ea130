package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSetGet(t *testing.T) {
	c := New[string](Options{})

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	c.Set("a", "2")
	v, _ = c.Get("a")
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestExpireAfterWrite(t *testing.T) {
	clock := newFakeClock()
	c := New[int](Options{TTL: time.Minute, Now: clock.Now})

	c.Set("k", 1)
	clock.Advance(59 * time.Second)

	// reads do not extend the lifetime
	_, ok := c.Get("k")
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must expire a TTL after the last write")
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Expirations)

	// a rewrite restarts the TTL
	c.Set("k", 2)
	clock.Advance(30 * time.Second)
	c.Set("k", 3)
	clock.Advance(45 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestNegativeTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	c := New[int](Options{TTL: -1, Now: clock.Now})

	c.Set("k", 1)
	clock.Advance(1000 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestLRUEviction(t *testing.T) {
	c := New[int](Options{MaxEntries: 3})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// touch a, b becomes the least recently used entry
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4)

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok = c.Get(k)
		assert.True(t, ok, "%s should still be cached", k)
	}
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestShardedBound(t *testing.T) {
	c := New[int](Options{MaxEntries: 1000})
	assert.Len(t, c.shards, defaultShards)

	for i := 0; i < 10_000; i++ {
		c.Set(strconv.Itoa(i), i)
	}
	assert.LessOrEqual(t, c.Len(), 1000)
	assert.Greater(t, c.Len(), 0)
}

func TestInvalidate(t *testing.T) {
	c := New[string](Options{})

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	c.Invalidate("a", "b", "missing")

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestInvalidateFunc(t *testing.T) {
	c := New[int](Options{})

	c.Set("users\x001", 1)
	c.Set("users\x002", 2)
	c.Set("orders\x001", 3)

	c.InvalidateFunc(func(key string) bool {
		return len(key) > 6 && key[:6] == "users\x00"
	})

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("orders\x001")
	assert.True(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestFillWithoutInterference(t *testing.T) {
	c := New[string](Options{})

	ticket := c.Ticket("k")
	assert.True(t, c.Fill("k", "v", ticket))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

// TestFillAfterInvalidate simulates a read that was in flight while the key was deleted.
// The late fill must not resurrect the stale value.
func TestFillAfterInvalidate(t *testing.T) {
	c := New[string](Options{})

	ticket := c.Ticket("k")
	c.Invalidate("k")

	assert.False(t, c.Fill("k", "stale", ticket))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestFillAfterSet(t *testing.T) {
	c := New[string](Options{})

	ticket := c.Ticket("k")
	c.Set("k", "new")

	assert.False(t, c.Fill("k", "old", ticket))
	v, _ := c.Get("k")
	assert.Equal(t, "new", v)
}

// TestFillAfterSetAndEviction checks that evicting the newer entry does not re-open
// the door for a fill that started before the write.
func TestFillAfterSetAndEviction(t *testing.T) {
	c := New[string](Options{MaxEntries: 1})

	ticket := c.Ticket("k")
	c.Set("k", "new")
	c.Set("other", "x") // evicts k

	_, ok := c.Get("k")
	require.False(t, ok)
	assert.False(t, c.Fill("k", "old", ticket))
}

func TestSetIf(t *testing.T) {
	c := New[string](Options{})

	gen := c.Set("k", "v1")
	require.True(t, c.SetIf("k", "v2", gen))
	v, _ := c.Get("k")
	assert.Equal(t, "v2", v)

	// the entry was re-stamped, the old generation is spent
	assert.False(t, c.SetIf("k", "v3", gen))
}

func TestSetIfAfterInvalidate(t *testing.T) {
	c := New[string](Options{})

	gen := c.Set("k", "v")
	c.Invalidate("k")

	assert.False(t, c.SetIf("k", "v", gen))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestSetIfOnAbsentKey(t *testing.T) {
	c := New[string](Options{})

	c.Invalidate("k")
	ticket := c.Ticket("k")
	require.True(t, c.SetIf("k", "v", ticket))

	// a fill holding the same ticket must not overwrite the write
	assert.False(t, c.Fill("k", "old", ticket))
	v, _ := c.Get("k")
	assert.Equal(t, "v", v)
}

func TestFillAfterInvalidateFunc(t *testing.T) {
	c := New[string](Options{})

	ticket := c.Ticket("coll\x00k")
	c.InvalidateFunc(func(string) bool { return false })

	assert.False(t, c.Fill("coll\x00k", "stale", ticket))
}

func TestRange(t *testing.T) {
	clock := newFakeClock()
	c := New[int](Options{TTL: time.Minute, Now: clock.Now})

	c.Set("old", 0)
	clock.Advance(2 * time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	seen := make(map[string]int)
	c.Range(func(key string, value int) bool {
		seen[key] = value
		return true
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)

	n := 0
	c.Range(func(string, int) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](Options{MaxEntries: 512})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := strconv.Itoa(i % 700)
				switch i % 4 {
				case 0:
					c.Set(key, i)
				case 1:
					c.Get(key)
				case 2:
					c.Fill(key, i, c.Ticket(key))
				case 3:
					c.Invalidate(key)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 512)
}
