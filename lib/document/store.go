package document

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dFacade/lib/async"
	"github.com/ValentinKolb/dFacade/lib/cache"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/singleflight"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	Logger = logger.GetLogger("document")
)

// Store is the document facade. Documents are addressed by collection and key, the key
// is stored in the identifier field of the document (default "uniqueId_key").
// Reads by key are served from a bounded TTL cache.
//
// Documents passed in are never modified and documents returned are copies, callers may
// change them freely.
//
// Thread-safety: All methods are safe for concurrent use.
type Store struct {
	backend Backend
	idField string
	cache   *cache.Cache[Document]
	flight  singleflight.Group
	pool    *async.Pool
	metrics *metrics.Recorder
	closed  atomic.Bool
}

// New creates a facade on top of an already connected backend.
// The store takes ownership of the backend and closes it in Close.
func New(backend Backend, opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.recorder == nil {
		o.recorder = metrics.NewRecorder("document")
	}
	if o.idField == "" {
		o.idField = DefaultIdentifierField
	}

	return &Store{
		backend: backend,
		idField: o.idField,
		cache: cache.New[Document](cache.Options{
			TTL:        o.cacheTTL,
			MaxEntries: o.cacheSize,
			Now:        o.now,
		}),
		pool:    async.NewPool(o.workers),
		metrics: o.recorder,
	}
}

// cacheKey separates collections in the shared cache
func cacheKey(collection, key string) string {
	return collection + "\x00" + key
}

// invalidateCollection drops every cached document of the given collections
func (s *Store) invalidateCollection(collections ...string) {
	s.cache.InvalidateFunc(func(k string) bool {
		for _, c := range collections {
			if strings.HasPrefix(k, c+"\x00") {
				return true
			}
		}
		return false
	})
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
		database.FeatureAsync |
		database.FeatureBatch |
		database.FeatureAdmin
	return feature&supported == feature
}

func (s *Store) Ping(ctx context.Context) error {
	return database.WrapBackend("ping", s.backend.Ping(ctx))
}

// Close waits for pending asynchronous operations and closes the backend
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.pool.Close()
	return database.WrapBackend("close", s.backend.Close())
}

// IdentifierField returns the field that carries the key
func (s *Store) IdentifierField() string {
	return s.idField
}

// Metrics returns the recorder of this store
func (s *Store) Metrics() *metrics.Recorder {
	return s.metrics
}

func (s *Store) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the document of collection with the given key.
// A missing document fails with a NotFoundError.
func (s *Store) Get(ctx context.Context, collection, key string) (doc Document, err error) {
	defer s.metrics.Observe("get", time.Now(), &err)

	ck := cacheKey(collection, key)
	if doc, ok := s.cache.Get(ck); ok {
		s.metrics.CacheHit()
		return doc.Clone(), nil
	}
	s.metrics.CacheMiss()

	ticket := s.cache.Ticket(ck)
	v, err, _ := s.flight.Do(ck+"\x00"+strconv.FormatUint(ticket, 10), func() (any, error) {
		doc, found, err := s.backend.FindOne(ctx, collection, s.idField, key)
		if err != nil {
			return nil, database.WrapBackend("find "+collection+"/"+key, err)
		}
		if !found {
			return nil, database.NotFound("document", collection+"/"+key)
		}
		s.cache.Fill(ck, doc.Clone(), ticket)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Document).Clone(), nil
}

// GetAll returns every document of the collection. There is no pagination.
func (s *Store) GetAll(ctx context.Context, collection string) (docs []Document, err error) {
	defer s.metrics.Observe("get_all", time.Now(), &err)

	docs, err = s.backend.FindAll(ctx, collection)
	if err != nil {
		return nil, database.WrapBackend("find all "+collection, err)
	}
	return docs, nil
}

// GetAllCached returns the cached documents of a collection without a backend round-trip
func (s *Store) GetAllCached(collection string) []Document {
	prefix := collection + "\x00"
	docs := make([]Document, 0)
	s.cache.Range(func(k string, doc Document) bool {
		if strings.HasPrefix(k, prefix) {
			docs = append(docs, doc.Clone())
		}
		return true
	})
	return docs
}

// Count returns the number of documents in the collection
func (s *Store) Count(ctx context.Context, collection string) (n int64, err error) {
	defer s.metrics.Observe("count", time.Now(), &err)

	n, err = s.backend.Count(ctx, collection)
	return n, database.WrapBackend("count "+collection, err)
}

// Exists reports whether a document with the given key exists.
// It is implemented as a Get, a cache miss costs a full document read.
func (s *Store) Exists(ctx context.Context, collection, key string) (bool, error) {
	_, err := s.Get(ctx, collection, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// stamp returns a copy of doc carrying key in the identifier field
func (s *Store) stamp(doc Document, key string) Document {
	d := doc.Clone()
	if d == nil {
		d = make(Document, 1)
	}
	d[s.idField] = key
	return d
}

// Insert stores doc under key and caches it
func (s *Store) Insert(ctx context.Context, collection, key string, doc Document) (err error) {
	defer s.metrics.Observe("insert", time.Now(), &err)

	ck := cacheKey(collection, key)
	d := s.stamp(doc, key)

	s.cache.Invalidate(ck)
	ticket := s.cache.Ticket(ck)
	if err := s.backend.InsertOne(ctx, collection, d); err != nil {
		s.cache.Invalidate(ck)
		return database.WrapBackend("insert "+collection+"/"+key, err)
	}
	s.cache.SetIf(ck, d, ticket)
	return nil
}

// InsertBatch stamps key onto every document and inserts them in a single bulk write.
// Get returns the first of them afterwards.
func (s *Store) InsertBatch(ctx context.Context, collection, key string, docs []Document) (err error) {
	defer s.metrics.Observe("insert_batch", time.Now(), &err)

	if len(docs) == 0 {
		return nil
	}
	stamped := make([]Document, len(docs))
	for i, doc := range docs {
		stamped[i] = s.stamp(doc, key)
	}

	ck := cacheKey(collection, key)
	s.cache.Invalidate(ck)
	err = s.backend.InsertMany(ctx, collection, stamped)
	s.cache.Invalidate(ck)
	return database.WrapBackend("insert batch "+collection+"/"+key, err)
}

// Replace replaces the document with the given key by doc.
// It fails with a NotFoundError if no such document exists.
func (s *Store) Replace(ctx context.Context, collection, key string, doc Document) (err error) {
	defer s.metrics.Observe("replace", time.Now(), &err)

	ck := cacheKey(collection, key)
	d := s.stamp(doc, key)

	s.cache.Invalidate(ck)
	ticket := s.cache.Ticket(ck)
	matched, err := s.backend.ReplaceOne(ctx, collection, s.idField, key, d)
	if err != nil {
		s.cache.Invalidate(ck)
		return database.WrapBackend("replace "+collection+"/"+key, err)
	}
	if !matched {
		s.cache.Invalidate(ck)
		return database.NotFound("document", collection+"/"+key)
	}
	s.cache.SetIf(ck, d, ticket)
	return nil
}

// Update merges the fields of partial into the document with the given key and returns
// the updated document. The identifier field cannot be changed.
// It fails with a NotFoundError if no such document exists.
func (s *Store) Update(ctx context.Context, collection, key string, partial Document) (updated Document, err error) {
	defer s.metrics.Observe("update", time.Now(), &err)

	set := partial.Clone()
	delete(set, s.idField)
	if len(set) == 0 {
		// nothing to merge, but the document still has to exist
		return s.Get(ctx, collection, key)
	}

	ck := cacheKey(collection, key)
	s.cache.Invalidate(ck)
	ticket := s.cache.Ticket(ck)
	updated, matched, err := s.backend.UpdateOne(ctx, collection, s.idField, key, set)
	if err != nil {
		s.cache.Invalidate(ck)
		return nil, database.WrapBackend("update "+collection+"/"+key, err)
	}
	if !matched {
		s.cache.Invalidate(ck)
		return nil, database.NotFound("document", collection+"/"+key)
	}
	s.cache.SetIf(ck, updated.Clone(), ticket)
	return updated, nil
}

// Delete deletes the document with the given key.
// It fails with a NotFoundError if nothing was deleted.
func (s *Store) Delete(ctx context.Context, collection, key string) (err error) {
	defer s.metrics.Observe("delete", time.Now(), &err)

	ck := cacheKey(collection, key)
	s.cache.Invalidate(ck)
	deleted, err := s.backend.DeleteOne(ctx, collection, s.idField, key)
	s.cache.Invalidate(ck)
	if err != nil {
		return database.WrapBackend("delete "+collection+"/"+key, err)
	}
	if !deleted {
		return database.NotFound("document", collection+"/"+key)
	}
	return nil
}

// DeleteMany deletes every document carrying the given key and returns how many were deleted
func (s *Store) DeleteMany(ctx context.Context, collection, key string) (deleted int64, err error) {
	defer s.metrics.Observe("delete_many", time.Now(), &err)

	ck := cacheKey(collection, key)
	s.cache.Invalidate(ck)
	deleted, err = s.backend.DeleteMany(ctx, collection, s.idField, key)
	s.cache.Invalidate(ck)
	if err != nil {
		return 0, database.WrapBackend("delete many "+collection+"/"+key, err)
	}
	return deleted, nil
}

// --------------------------------------------------------------------------
// Administrative Operations
// --------------------------------------------------------------------------

// Rename renames a collection. Cached documents of both names are dropped.
func (s *Store) Rename(ctx context.Context, collection, newName string) (err error) {
	defer s.metrics.Observe("rename", time.Now(), &err)

	if newName == "" {
		return database.NewError(database.CodeInvalidConfiguration, "new collection name is empty")
	}
	s.invalidateCollection(collection, newName)
	err = s.backend.Rename(ctx, collection, newName)
	s.invalidateCollection(collection, newName)
	return database.WrapBackend("rename "+collection, err)
}

// Drop deletes a collection with all its documents
func (s *Store) Drop(ctx context.Context, collection string) (err error) {
	defer s.metrics.Observe("drop", time.Now(), &err)

	s.invalidateCollection(collection)
	err = s.backend.Drop(ctx, collection)
	s.invalidateCollection(collection)
	return database.WrapBackend("drop "+collection, err)
}
