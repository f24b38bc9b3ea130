package relational

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/async"
)

// --------------------------------------------------------------------------
// Asynchronous Operations (same semantics as the synchronous counterparts)
// --------------------------------------------------------------------------

func (s *Store) CreateTableAsync(ctx context.Context, columns []Column, table, primaryKey string) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.CreateTable(ctx, columns, table, primaryKey)
	})
}

func (s *Store) InsertAsync(ctx context.Context, table string, values ...any) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Insert(ctx, table, values...)
	})
}

func (s *Store) UpdateAsync(ctx context.Context, table string, key any, column string, value any) *async.Future[int64] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (int64, error) {
		return s.Update(ctx, table, key, column, value)
	})
}

// GetResultAsync resolves to an open Result which the caller must close.
// The rows are bound to ctx, it must stay alive while the result is read.
func (s *Store) GetResultAsync(ctx context.Context, table string, key any, clauses ...Clause) *async.Future[*Result] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (*Result, error) {
		return s.GetResult(ctx, table, key, clauses...)
	})
}

func (s *Store) DeleteAsync(ctx context.Context, table string, key any) *async.Future[int64] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (int64, error) {
		return s.Delete(ctx, table, key)
	})
}
