package document

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/async"
)

// --------------------------------------------------------------------------
// Asynchronous Operations (same semantics as the synchronous counterparts)
// --------------------------------------------------------------------------

func (s *Store) GetAsync(ctx context.Context, collection, key string) *async.Future[Document] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (Document, error) {
		return s.Get(ctx, collection, key)
	})
}

func (s *Store) GetAllAsync(ctx context.Context, collection string) *async.Future[[]Document] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) ([]Document, error) {
		return s.GetAll(ctx, collection)
	})
}

func (s *Store) CountAsync(ctx context.Context, collection string) *async.Future[int64] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (int64, error) {
		return s.Count(ctx, collection)
	})
}

func (s *Store) ExistsAsync(ctx context.Context, collection, key string) *async.Future[bool] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (bool, error) {
		return s.Exists(ctx, collection, key)
	})
}

func (s *Store) InsertAsync(ctx context.Context, collection, key string, doc Document) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Insert(ctx, collection, key, doc)
	})
}

func (s *Store) InsertBatchAsync(ctx context.Context, collection, key string, docs []Document) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.InsertBatch(ctx, collection, key, docs)
	})
}

func (s *Store) ReplaceAsync(ctx context.Context, collection, key string, doc Document) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Replace(ctx, collection, key, doc)
	})
}

func (s *Store) UpdateAsync(ctx context.Context, collection, key string, partial Document) *async.Future[Document] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (Document, error) {
		return s.Update(ctx, collection, key, partial)
	})
}

func (s *Store) DeleteAsync(ctx context.Context, collection, key string) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Delete(ctx, collection, key)
	})
}

func (s *Store) DeleteManyAsync(ctx context.Context, collection, key string) *async.Future[int64] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (int64, error) {
		return s.DeleteMany(ctx, collection, key)
	})
}

func (s *Store) RenameAsync(ctx context.Context, collection, newName string) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Rename(ctx, collection, newName)
	})
}

func (s *Store) DropAsync(ctx context.Context, collection string) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Drop(ctx, collection)
	})
}
