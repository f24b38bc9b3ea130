package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Call counting stub backend
// --------------------------------------------------------------------------

type stubBackend struct {
	mu   sync.Mutex
	data map[string]string

	gets    atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64

	// afterRead is called by Get after the value was read, outside the lock
	afterRead func(key string)
	// afterWrite is called by Set after the value was written, outside the lock
	afterWrite func(key string)
	getErr     error
	setErr     error

	published []Message
	ps        *stubPubSub
	closed    bool
}

func newStub() *stubBackend {
	return &stubBackend{data: make(map[string]string)}
}

func (b *stubBackend) Type() database.BackendType { return database.BackendMemory }

func (b *stubBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.gets.Add(1)
	if b.getErr != nil {
		return "", false, b.getErr
	}
	b.mu.Lock()
	value, ok := b.data[key]
	hook := b.afterRead
	b.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return value, ok, nil
}

func (b *stubBackend) Set(_ context.Context, key, value string) error {
	b.sets.Add(1)
	if b.setErr != nil {
		return b.setErr
	}
	b.mu.Lock()
	b.data[key] = value
	hook := b.afterWrite
	b.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return nil
}

func (b *stubBackend) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.data[key]; ok && v == value {
		delete(b.data, key)
		return true, nil
	}
	return false, nil
}

func (b *stubBackend) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; ok {
		return false, nil
	}
	b.data[key] = value
	return true, nil
}

func (b *stubBackend) Delete(_ context.Context, keys ...string) (int64, error) {
	b.deletes.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := b.data[k]; ok {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func (b *stubBackend) Publish(_ context.Context, channel, message string) error {
	b.mu.Lock()
	b.published = append(b.published, Message{Channel: channel, Payload: message})
	ps := b.ps
	b.mu.Unlock()
	if ps != nil {
		ps.deliver(Message{Channel: channel, Payload: message})
	}
	return nil
}

func (b *stubBackend) OpenPubSub(_ context.Context) (PubSub, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ps = &stubPubSub{channels: make(map[string]bool), msgs: make(chan Message, 16)}
	return b.ps, nil
}

func (b *stubBackend) Ping(_ context.Context) error { return nil }

func (b *stubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *stubBackend) raw(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok
}

type stubPubSub struct {
	mu           sync.Mutex
	channels     map[string]bool
	unsubscribed []string
	msgs         chan Message
	closed       bool
}

func (p *stubPubSub) Subscribe(_ context.Context, channels ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range channels {
		p.channels[c] = true
	}
	return nil
}

func (p *stubPubSub) Unsubscribe(_ context.Context, channels ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range channels {
		delete(p.channels, c)
		p.unsubscribed = append(p.unsubscribed, c)
	}
	return nil
}

func (p *stubPubSub) Messages() <-chan Message { return p.msgs }

func (p *stubPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.msgs)
	}
	return nil
}

func (p *stubPubSub) deliver(msg Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed && p.channels[msg.Channel] {
		p.msgs <- msg
	}
}

func (p *stubPubSub) wasUnsubscribed(channel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.unsubscribed {
		if c == channel {
			return true
		}
	}
	return false
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *stubBackend) {
	b := newStub()
	s := New(b, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, b
}

// --------------------------------------------------------------------------
// Cache coherence
// --------------------------------------------------------------------------

func TestSetThenGetIsServedFromCache(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "n", 42))
	require.NoError(t, s.Set(ctx, "doc", map[string]any{"a": 1}))

	n, err := s.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	doc, err := s.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, doc)

	assert.Equal(t, int64(0), b.gets.Load(), "reads after a write must not reach the backend")
	assert.Equal(t, uint64(2), s.Metrics().CacheHits())
}

func TestGetMissPopulatesCache(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()
	b.data["k"] = "v"

	for i := 0; i < 3; i++ {
		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	assert.Equal(t, int64(1), b.gets.Load())
}

func TestMissingKeyIsNotCached(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, database.ErrNotFound), "got %v", err)
	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, database.ErrNotFound))

	assert.Equal(t, int64(2), b.gets.Load(), "negative results must not be cached")
}

func TestCacheExpiresAfterWrite(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s, b := newTestStore(t, WithCacheTTL(time.Minute), WithClock(clock))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.gets.Load())

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	_, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.gets.Load(), "expired entry must be re-read from the backend")
}

func TestCacheBound(t *testing.T) {
	s, b := newTestStore(t, WithCacheSize(2))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, s.Set(ctx, "b", 2))
	require.NoError(t, s.Set(ctx, "c", 3))

	assert.LessOrEqual(t, s.CacheStats().Entries, 2)

	// a was evicted first
	_, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.gets.Load())
}

// --------------------------------------------------------------------------
// Invalidation
// --------------------------------------------------------------------------

func TestDeleteInvalidates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, s.Set(ctx, "b", 2))
	require.NoError(t, s.Set(ctx, "c", 3))

	deleted, err := s.Delete(ctx, "a", "b", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	for _, k := range []string{"a", "b"} {
		_, err = s.Get(ctx, k)
		assert.True(t, errors.Is(err, database.ErrNotFound), "key %s: got %v", k, err)
	}
	v, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	deleted, err = s.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

// TestNoResurrectionAfterDelete starts a read, lets it fetch the old value from the
// backend, deletes the key while the read is in flight and then lets the read finish.
// The stale value must not end up in the cache.
func TestNoResurrectionAfterDelete(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()
	b.data["k"] = "old"

	reading := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once
	b.afterRead = func(string) {
		once.Do(func() {
			close(reading)
			<-resume
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx, "k")
		done <- err
	}()

	<-reading
	_, err := s.Delete(ctx, "k")
	require.NoError(t, err)
	close(resume)
	require.NoError(t, <-done, "the in-flight read itself may return the old value")

	_, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, database.ErrNotFound), "stale value resurrected: %v", err)
}

func TestNoStaleFillAfterSet(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()
	b.data["k"] = "old"

	reading := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once
	b.afterRead = func(string) {
		once.Do(func() {
			close(reading)
			<-resume
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Get(ctx, "k")
	}()

	<-reading
	require.NoError(t, s.Set(ctx, "k", "new"))
	close(resume)
	<-done

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

// TestDeleteDuringSetIsNotUndone deletes the key after the backend write of Set but
// before Set returns.
func TestDeleteDuringSetIsNotUndone(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	var once sync.Once
	b.afterWrite = func(key string) {
		once.Do(func() {
			_, err := s.Delete(ctx, key)
			require.NoError(t, err)
		})
	}

	require.NoError(t, s.Set(ctx, "k", "v"))

	b.mu.Lock()
	_, found := b.data["k"]
	b.mu.Unlock()
	require.False(t, found)

	_, err := s.Get(ctx, "k")
	assert.True(t, errors.Is(err, database.ErrNotFound), "stale value resurrected: %v", err)
}

func TestFailedWriteInvalidates(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	driverErr := errors.New("connection reset")
	b.setErr = driverErr

	err := s.Set(ctx, "k", "v")
	assert.True(t, errors.Is(err, database.ErrBackend), "got %v", err)
	assert.True(t, errors.Is(err, driverErr), "driver error must be preserved")

	// the value must not be served from the cache
	_, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, database.ErrNotFound), "got %v", err)
	assert.Equal(t, int64(1), b.gets.Load())
}

func TestBackendReadErrorIsWrapped(t *testing.T) {
	s, b := newTestStore(t)
	driverErr := errors.New("timeout")
	b.getErr = driverErr

	_, err := s.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, database.ErrBackend))
	assert.True(t, errors.Is(err, driverErr))

	_, err = s.Exists(context.Background(), "k")
	assert.True(t, errors.Is(err, database.ErrBackend), "Exists must only downgrade NotFound")
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func TestSerializationAsymmetry(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "n", 42))
	require.NoError(t, s.Set(ctx, "s", "text"))
	require.NoError(t, s.Set(ctx, "m", map[string]any{"a": 1}))

	raw, _ := b.raw("n")
	assert.Equal(t, "42", raw)
	raw, _ = b.raw("s")
	assert.Equal(t, "text", raw)
	raw, _ = b.raw("m")
	assert.JSONEq(t, `{"a":1}`, raw)

	// round-trip through the backend, not the cache
	s.cache.Purge()
	v, err := s.Get(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, v)
}

func TestGetInto(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	type user struct {
		Name string `json:"name"`
	}
	require.NoError(t, s.Set(ctx, "user:1", user{Name: "Ann"}))

	var u user
	require.NoError(t, s.GetInto(ctx, "user:1", &u))
	assert.Equal(t, "Ann", u.Name)

	var n int
	err := s.GetInto(ctx, "user:1", &n)
	assert.True(t, errors.Is(err, database.ErrEncoding), "got %v", err)

	err = s.GetInto(ctx, "missing", &u)
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestExists(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", false))
	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "a stored false is still an existing key")
}

// --------------------------------------------------------------------------
// Pub/Sub
// --------------------------------------------------------------------------

type call struct {
	channel string
	message string
}

func TestPublishInvokesHandlerExactlyOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	calls := make(chan call, 8)
	require.NoError(t, s.Subscribe(ctx, "c", func(channel, message string) {
		calls <- call{channel, message}
	}))

	require.NoError(t, s.Publish(ctx, "c", "m"))

	select {
	case got := <-calls:
		assert.Equal(t, call{"c", "m"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
	select {
	case got := <-calls:
		t.Fatalf("handler invoked twice, second call %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMessageWithoutHandlerAutoUnsubscribes(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	var invoked atomic.Int32
	require.NoError(t, s.Subscribe(ctx, "c", func(string, string) { invoked.Add(1) }))

	// the backend subscription stays, only the handler is gone
	s.handlers.Delete("c")
	require.NoError(t, s.Publish(ctx, "c", "m"))

	require.Eventually(t, func() bool {
		return b.ps.wasUnsubscribed("c")
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(0), invoked.Load())
}

func TestSubscribeReplacesHandler(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var first, second atomic.Int32
	require.NoError(t, s.Subscribe(ctx, "c", func(string, string) { first.Add(1) }))
	require.NoError(t, s.Subscribe(ctx, "c", func(string, string) { second.Add(1) }))
	assert.Equal(t, []string{"c"}, s.Channels())

	require.NoError(t, s.Publish(ctx, "c", "m"))
	require.Eventually(t, func() bool { return second.Load() == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestUnsubscribe(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	// unsubscribing before any subscription is a no-op
	require.NoError(t, s.Unsubscribe(ctx, "c"))

	var invoked atomic.Int32
	require.NoError(t, s.Subscribe(ctx, "c", func(string, string) { invoked.Add(1) }))
	require.NoError(t, s.Unsubscribe(ctx, "c"))

	assert.Empty(t, s.Channels())
	assert.True(t, b.ps.wasUnsubscribed("c"))

	require.NoError(t, s.Publish(ctx, "c", "m"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), invoked.Load())
}

func TestPanickingHandlerKeepsDispatching(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Subscribe(ctx, "bad", func(string, string) { panic("handler bug") }))
	got := make(chan string, 1)
	require.NoError(t, s.Subscribe(ctx, "good", func(_, message string) { got <- message }))

	require.NoError(t, s.Publish(ctx, "bad", "x"))
	require.NoError(t, s.Publish(ctx, "good", "y"))

	select {
	case m := <-got:
		assert.Equal(t, "y", m)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch stopped after a panicking handler")
	}
}

func TestPublishEncodesLikeSet(t *testing.T) {
	s, b := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, "nobody-listens", 42))
	require.NoError(t, s.Publish(ctx, "nobody-listens", map[string]any{"a": true}))

	require.Len(t, b.published, 2)
	assert.Equal(t, "42", b.published[0].Payload)
	assert.JSONEq(t, `{"a":true}`, b.published[1].Payload)
}

func TestSubscribeNilHandler(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Subscribe(context.Background(), "c", nil)
	assert.True(t, errors.Is(err, database.ErrConfiguration))
}

// --------------------------------------------------------------------------
// Async & lifecycle
// --------------------------------------------------------------------------

func TestAsyncVariants(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetAsync(ctx, "k", 1).Err())

	v, err := s.GetAsync(ctx, "k").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	ok, err := s.ExistsAsync(ctx, "k").Wait()
	require.NoError(t, err)
	assert.True(t, ok)

	var n int
	require.NoError(t, s.GetIntoAsync(ctx, "k", &n).Err())
	assert.Equal(t, 1, n)

	deleted, err := s.DeleteAsync(ctx, "k").Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// same error kind as the synchronous call
	_, err = s.GetAsync(ctx, "k").Wait()
	assert.True(t, errors.Is(err, database.ErrNotFound), "got %v", err)

	got := make(chan string, 1)
	require.NoError(t, s.SubscribeAsync(ctx, "c", func(_, m string) { got <- m }).Err())
	require.NoError(t, s.PublishAsync(ctx, "c", "hi").Err())
	assert.Equal(t, "hi", <-got)
	require.NoError(t, s.UnsubscribeAsync(ctx, "c").Err())
}

func TestSupportsFeature(t *testing.T) {
	s, _ := newTestStore(t)

	assert.True(t, s.SupportsFeature(database.FeatureCache|database.FeaturePubSub))
	assert.True(t, s.SupportsFeature(database.FeatureAsync))
	assert.False(t, s.SupportsFeature(database.FeatureSchema))
	assert.False(t, s.SupportsFeature(database.FeatureCache|database.FeatureSchema))
	assert.Equal(t, database.BackendMemory, s.Type())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestClose(t *testing.T) {
	b := newStub()
	s := New(b)
	ctx := context.Background()

	require.NoError(t, s.Subscribe(ctx, "c", func(string, string) {}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, b.closed)
	assert.True(t, b.ps.closed)

	_, err := s.GetAsync(ctx, "k").Wait()
	assert.Error(t, err)
}
