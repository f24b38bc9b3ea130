// Package memory provides an in-process document.Backend.
package memory

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/document"
	"github.com/puzpuzpuz/xsync/v3"
	"reflect"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = database.NewError(database.CodeBackend, "memory backend is closed")

// collection holds the documents in insertion order
type collection struct {
	mu   sync.RWMutex
	docs []document.Document
}

// Backend is the in-process implementation of document.Backend.
// Documents are copied on the way in and out.
type Backend struct {
	collections *xsync.MapOf[string, *collection]
	renameMu    sync.RWMutex // Rename and Drop exclude all other operations
	closed      atomic.Bool
}

// New creates an empty backend
func New() *Backend {
	return &Backend{
		collections: xsync.NewMapOf[string, *collection](),
	}
}

var _ document.Backend = (*Backend)(nil)

// get returns the collection, creating it if create is true
func (b *Backend) get(name string, create bool) *collection {
	if create {
		c, _ := b.collections.LoadOrCompute(name, func() *collection { return &collection{} })
		return c
	}
	c, _ := b.collections.Load(name)
	return c
}

// enter guards a regular operation
func (b *Backend) enter() (func(), error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	b.renameMu.RLock()
	return b.renameMu.RUnlock, nil
}

// index returns the position of the first matching document or -1.
// Callers hold the collection lock.
func (c *collection) index(field string, value any) int {
	for i, doc := range c.docs {
		if v, ok := doc[field]; ok && reflect.DeepEqual(v, value) {
			return i
		}
	}
	return -1
}

// --------------------------------------------------------------------------
// Interface Methods (docu see document.Backend)
// --------------------------------------------------------------------------

func (b *Backend) Type() database.BackendType {
	return database.BackendMemory
}

func (b *Backend) FindOne(_ context.Context, name, field string, value any) (document.Document, bool, error) {
	leave, err := b.enter()
	if err != nil {
		return nil, false, err
	}
	defer leave()

	c := b.get(name, false)
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.index(field, value); i >= 0 {
		return c.docs[i].Clone(), true, nil
	}
	return nil, false, nil
}

func (b *Backend) FindAll(_ context.Context, name string) ([]document.Document, error) {
	leave, err := b.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	docs := make([]document.Document, 0)
	c := b.get(name, false)
	if c == nil {
		return docs, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		docs = append(docs, doc.Clone())
	}
	return docs, nil
}

func (b *Backend) Count(_ context.Context, name string) (int64, error) {
	leave, err := b.enter()
	if err != nil {
		return 0, err
	}
	defer leave()

	c := b.get(name, false)
	if c == nil {
		return 0, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.docs)), nil
}

func (b *Backend) InsertOne(ctx context.Context, name string, doc document.Document) error {
	return b.InsertMany(ctx, name, []document.Document{doc})
}

func (b *Backend) InsertMany(_ context.Context, name string, docs []document.Document) error {
	leave, err := b.enter()
	if err != nil {
		return err
	}
	defer leave()

	c := b.get(name, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range docs {
		c.docs = append(c.docs, doc.Clone())
	}
	return nil
}

func (b *Backend) ReplaceOne(_ context.Context, name, field string, value any, doc document.Document) (bool, error) {
	leave, err := b.enter()
	if err != nil {
		return false, err
	}
	defer leave()

	c := b.get(name, false)
	if c == nil {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(field, value)
	if i < 0 {
		return false, nil
	}
	c.docs[i] = doc.Clone()
	return true, nil
}

func (b *Backend) UpdateOne(_ context.Context, name, field string, value any, set document.Document) (document.Document, bool, error) {
	leave, err := b.enter()
	if err != nil {
		return nil, false, err
	}
	defer leave()

	c := b.get(name, false)
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(field, value)
	if i < 0 {
		return nil, false, nil
	}
	for k, v := range set.Clone() {
		c.docs[i][k] = v
	}
	return c.docs[i].Clone(), true, nil
}

func (b *Backend) DeleteOne(_ context.Context, name, field string, value any) (bool, error) {
	leave, err := b.enter()
	if err != nil {
		return false, err
	}
	defer leave()

	c := b.get(name, false)
	if c == nil {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(field, value)
	if i < 0 {
		return false, nil
	}
	c.docs = append(c.docs[:i], c.docs[i+1:]...)
	return true, nil
}

func (b *Backend) DeleteMany(_ context.Context, name, field string, value any) (int64, error) {
	leave, err := b.enter()
	if err != nil {
		return 0, err
	}
	defer leave()

	c := b.get(name, false)
	if c == nil {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.docs[:0]
	var deleted int64
	for _, doc := range c.docs {
		if v, ok := doc[field]; ok && reflect.DeepEqual(v, value) {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return deleted, nil
}

// Rename fails if the source collection does not exist or the target already exists (like MongoDB)
func (b *Backend) Rename(_ context.Context, name, newName string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.renameMu.Lock()
	defer b.renameMu.Unlock()

	c, ok := b.collections.Load(name)
	if !ok {
		return database.Errorf(database.CodeNotFound, "collection %q does not exist", name)
	}
	if _, exists := b.collections.Load(newName); exists {
		return database.Errorf(database.CodeBackend, "target collection %q already exists", newName)
	}
	b.collections.Store(newName, c)
	b.collections.Delete(name)
	return nil
}

// Drop removes a collection, dropping a missing collection is not an error
func (b *Backend) Drop(_ context.Context, name string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.renameMu.Lock()
	defer b.renameMu.Unlock()

	b.collections.Delete(name)
	return nil
}

func (b *Backend) Ping(_ context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
