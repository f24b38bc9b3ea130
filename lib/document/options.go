package document

import (
	"github.com/ValentinKolb/dFacade/lib/async"
	"github.com/ValentinKolb/dFacade/lib/cache"
	"github.com/ValentinKolb/dFacade/lib/metrics"
	"time"
)

// DefaultIdentifierField is the document field that carries the application key
const DefaultIdentifierField = "uniqueId_key"

// Option configures a Store
type Option func(*options)

type options struct {
	idField   string
	cacheTTL  time.Duration
	cacheSize int
	workers   int
	recorder  *metrics.Recorder
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		idField:   DefaultIdentifierField,
		cacheTTL:  cache.DefaultTTL,
		cacheSize: cache.DefaultMaxEntries,
		workers:   async.DefaultWorkers,
	}
}

// WithIdentifierField sets the field used to correlate keys with documents
func WithIdentifierField(field string) Option {
	return func(o *options) { o.idField = field }
}

// WithCacheTTL sets the time after which a cached document expires (measured from its last write)
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

// WithCacheSize sets the maximum number of cached documents
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
