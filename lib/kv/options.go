package kv

import (
	"github.com/ValentinKolb/dFacade/lib/async"
	"github.com/ValentinKolb/dFacade/lib/cache"
	"github.com/ValentinKolb/dFacade/lib/metrics"
	"time"
)

// Option configures a Store
type Option func(*options)

type options struct {
	cacheTTL  time.Duration
	cacheSize int
	workers   int
	recorder  *metrics.Recorder
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		cacheTTL:  cache.DefaultTTL,
		cacheSize: cache.DefaultMaxEntries,
		workers:   async.DefaultWorkers,
	}
}

// WithCacheTTL sets the time after which a cached value expires (measured from its last write).
// A negative ttl disables expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

// WithCacheSize sets the maximum number of cached values
func WithCacheSize(size int) Option {
	return func(o *options) { o.cacheSize = size }
}

// WithWorkers sets the number of asynchronous operations that run concurrently
func WithWorkers(workers int) Option {
	return func(o *options) { o.workers = workers }
}

// WithMetrics records metrics into r instead of a private recorder
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithClock replaces the clock of the cache
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
