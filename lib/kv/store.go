package kv

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dFacade/lib/async"
	"github.com/ValentinKolb/dFacade/lib/cache"
	"github.com/ValentinKolb/dFacade/lib/codec"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var (
	Logger = logger.GetLogger("kv")
)

// Handler is called for every message received on a subscribed channel.
// message is the text as published (see codec.Decode to restore typed values).
type Handler func(channel, message string)

// Store is the key-value facade. It puts a bounded TTL cache in front of the backend's
// reads and dispatches pub/sub messages to per-channel handlers.
//
// Thread-safety: All methods are safe for concurrent use.
type Store struct {
	backend Backend
	cache   *cache.Cache[string] // key -> encoded value
	flight  singleflight.Group
	pool    *async.Pool
	metrics *metrics.Recorder

	// pub/sub
	handlers *xsync.MapOf[string, Handler]
	psMu     sync.Mutex
	ps       PubSub
	psDone   chan struct{}

	closed atomic.Bool
}

// New creates a facade on top of an already connected backend.
// The store takes ownership of the backend and closes it in Close.
func New(backend Backend, opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.recorder == nil {
		o.recorder = metrics.NewRecorder("kv")
	}

	return &Store{
		backend: backend,
		cache: cache.New[string](cache.Options{
			TTL:        o.cacheTTL,
			MaxEntries: o.cacheSize,
			Now:        o.now,
		}),
		pool:     async.NewPool(o.workers),
		metrics:  o.recorder,
		handlers: xsync.NewMapOf[string, Handler](),
	}
}

// --------------------------------------------------------------------------
// database.Database
// --------------------------------------------------------------------------

var _ database.Database = (*Store)(nil)

func (s *Store) Type() database.BackendType {
	return s.backend.Type()
}

func (s *Store) SupportsFeature(feature database.Feature) bool {
	supported := database.FeatureCache |
		database.FeaturePubSub |
		database.FeatureAsync |
		database.FeatureBatch |
		database.FeatureLocks
	return feature&supported == feature
}

func (s *Store) Ping(ctx context.Context) error {
	return database.WrapBackend("ping", s.backend.Ping(ctx))
}

// Close ends the subscription connection, waits for pending asynchronous operations and
// closes the backend. Operations issued after Close fail with the backend's error.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	s.psMu.Lock()
	ps, done := s.ps, s.psDone
	s.ps = nil
	s.psMu.Unlock()

	// handlers may still call into the store until the dispatch loop ended
	if ps != nil {
		errs = append(errs, ps.Close())
		<-done
	}

	s.pool.Close()
	errs = append(errs, s.backend.Close())
	return database.WrapBackend("close", errors.Join(errs...))
}

// Metrics returns the recorder of this store
func (s *Store) Metrics() *metrics.Recorder {
	return s.metrics
}

// CacheStats returns the counters of the read cache
func (s *Store) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Backend returns the underlying backend (e.g. to build a lockmgr on the same connection)
func (s *Store) Backend() Backend {
	return s.backend
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the decoded value of key (see codec.Decode).
// A live cache entry is returned without a backend round-trip, a missing key fails with a NotFoundError.
func (s *Store) Get(ctx context.Context, key string) (value any, err error) {
	defer s.metrics.Observe("get", time.Now(), &err)

	raw, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return codec.Decode(raw), nil
}

// GetInto decodes the value of key into dst (see codec.DecodeInto)
func (s *Store) GetInto(ctx context.Context, key string, dst any) (err error) {
	defer s.metrics.Observe("get", time.Now(), &err)

	raw, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	return database.WrapEncoding(codec.DecodeInto(raw, dst))
}

// Exists reports whether key exists. It is the only operation that does not report a NotFoundError.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// load returns the encoded value of key from the cache or the backend.
// Concurrent misses of the same key share one backend read.
func (s *Store) load(ctx context.Context, key string) (string, error) {
	if raw, ok := s.cache.Get(key); ok {
		s.metrics.CacheHit()
		return raw, nil
	}
	s.metrics.CacheMiss()

	// only reads that started after the same write may share a result
	ticket := s.cache.Ticket(key)
	v, err, _ := s.flight.Do(key+"\x00"+strconv.FormatUint(ticket, 10), func() (any, error) {
		raw, found, err := s.backend.Get(ctx, key)
		if err != nil {
			return "", database.WrapBackend("get "+key, err)
		}
		if !found {
			return "", database.NotFound("key", key)
		}
		s.cache.Fill(key, raw, ticket)
		return raw, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set stores value under key. Scalars are stored as their literal text, everything
// else as JSON (see codec.Encode). The value is cached before it is written through.
func (s *Store) Set(ctx context.Context, key string, value any) (err error) {
	defer s.metrics.Observe("set", time.Now(), &err)

	raw, err := codec.Encode(value)
	if err != nil {
		return database.WrapEncoding(err)
	}

	s.cache.Invalidate(key)
	gen := s.cache.Set(key, raw)

	if err := s.backend.Set(ctx, key, raw); err != nil {
		s.cache.Invalidate(key)
		return database.WrapBackend("set "+key, err)
	}

	// re-stamped so reads that fetched the previous value while the write was in flight
	// are rejected, skipped if a delete or another write touched key meanwhile
	s.cache.SetIf(key, raw, gen)
	return nil
}

// Delete removes all given keys and returns how many of them existed.
func (s *Store) Delete(ctx context.Context, keys ...string) (deleted int64, err error) {
	defer s.metrics.Observe("delete", time.Now(), &err)

	if len(keys) == 0 {
		return 0, nil
	}

	s.cache.Invalidate(keys...)
	deleted, err = s.backend.Delete(ctx, keys...)
	// a read that raced with the delete may have filled the old value meanwhile
	s.cache.Invalidate(keys...)
	if err != nil {
		return 0, database.WrapBackend("delete", err)
	}
	return deleted, nil
}
