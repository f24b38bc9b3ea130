// Package memory provides an in-process kv.Backend including pub/sub.
//
// It is meant for development, tests and the CLI's offline mode. Data is not persisted.
// Expired keys are invisible immediately and removed by a periodic garbage collection.
package memory

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/kv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
	"time"
)

var (
	Logger = logger.GetLogger("kv/memory")
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultGCInterval = time.Second
	messageBuffer     = 1024 // per subscription, messages beyond are dropped
)

// ErrClosed is returned by every operation after Close
var ErrClosed = database.NewError(database.CodeBackend, "memory backend is closed")

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

type item struct {
	value    string
	expireAt time.Time // zero = never
}

func (i item) expired(now time.Time) bool {
	return !i.expireAt.IsZero() && !now.Before(i.expireAt)
}

// Backend is the in-process implementation of kv.Backend
type Backend struct {
	data *xsync.MapOf[string, item]
	now  func() time.Time

	subsMu sync.RWMutex
	subs   map[*pubSub]struct{}

	closed atomic.Bool
	stopGC chan struct{}
}

// Options configures a Backend
type Options struct {
	GCInterval time.Duration    // Time between GC runs (0 = 1 sec, <0 = disabled)
	Now        func() time.Time // Clock, replaceable in tests (nil = time.Now)
}

// New creates an empty backend. opts may be nil.
func New(opts *Options) *Backend {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GCInterval == 0 {
		opts.GCInterval = defaultGCInterval
	}

	b := &Backend{
		data:   xsync.NewMapOf[string, item](),
		now:    opts.Now,
		subs:   make(map[*pubSub]struct{}),
		stopGC: make(chan struct{}),
	}
	if opts.GCInterval > 0 {
		go b.gc(opts.GCInterval)
	}
	return b
}

var _ kv.Backend = (*Backend)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see kv.Backend)
// --------------------------------------------------------------------------

func (b *Backend) Type() database.BackendType {
	return database.BackendMemory
}

func (b *Backend) Get(_ context.Context, key string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, ErrClosed
	}
	it, ok := b.data.Load(key)
	if !ok || it.expired(b.now()) {
		return "", false, nil
	}
	return it.value, true, nil
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.data.Store(key, item{value: value})
	return nil
}

func (b *Backend) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	now := b.now()
	next := item{value: value}
	if ttl > 0 {
		next.expireAt = now.Add(ttl)
	}

	stored := false
	b.data.Compute(key, func(old item, loaded bool) (item, bool) {
		if loaded && !old.expired(now) {
			return old, false
		}
		stored = true
		return next, false
	})
	return stored, nil
}

func (b *Backend) Delete(_ context.Context, keys ...string) (int64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}

	now := b.now()
	var deleted int64
	for _, key := range keys {
		if it, ok := b.data.LoadAndDelete(key); ok && !it.expired(now) {
			deleted++
		}
	}
	return deleted, nil
}

func (b *Backend) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	now := b.now()
	deleted := false
	b.data.Compute(key, func(old item, loaded bool) (item, bool) {
		if !loaded {
			return old, true
		}
		if old.expired(now) || old.value != value {
			return old, false
		}
		deleted = true
		return old, true
	})
	return deleted, nil
}

func (b *Backend) Publish(_ context.Context, channel, message string) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.subsMu.RLock()
	subs := make([]*pubSub, 0, len(b.subs))
	for ps := range b.subs {
		subs = append(subs, ps)
	}
	b.subsMu.RUnlock()

	for _, ps := range subs {
		ps.deliver(kv.Message{Channel: channel, Payload: message})
	}
	return nil
}

func (b *Backend) OpenPubSub(_ context.Context) (kv.PubSub, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	ps := &pubSub{
		backend:  b,
		channels: make(map[string]struct{}),
		msgs:     make(chan kv.Message, messageBuffer),
	}
	b.subsMu.Lock()
	b.subs[ps] = struct{}{}
	b.subsMu.Unlock()
	return ps, nil
}

func (b *Backend) Ping(_ context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close stops the garbage collection and closes all open subscriptions
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.stopGC)

	b.subsMu.RLock()
	subs := make([]*pubSub, 0, len(b.subs))
	for ps := range b.subs {
		subs = append(subs, ps)
	}
	b.subsMu.RUnlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	return nil
}

// Len returns the number of stored keys, including expired keys not yet collected
func (b *Backend) Len() int {
	return b.data.Size()
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

func (b *Backend) gc(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			b.collect()
		}
	}
}

// collect removes all expired keys
func (b *Backend) collect() {
	now := b.now()
	removed := 0
	b.data.Range(func(key string, it item) bool {
		if it.expired(now) {
			// recheck under the bucket lock, the key may have been rewritten meanwhile
			b.data.Compute(key, func(old item, loaded bool) (item, bool) {
				if !loaded {
					return old, true
				}
				del := old.expired(now)
				if del {
					removed++
				}
				return old, del
			})
		}
		return true
	})
	if removed > 0 {
		Logger.Debugf("garbage collection removed %d expired keys", removed)
	}
}
