package kv

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/async"
)

// --------------------------------------------------------------------------
// Asynchronous Operations
//
// Every method runs its synchronous counterpart on the store's worker pool and
// fails the future with the error the synchronous call would have returned.
// --------------------------------------------------------------------------

func (s *Store) GetAsync(ctx context.Context, key string) *async.Future[any] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (any, error) {
		return s.Get(ctx, key)
	})
}

// GetIntoAsync decodes into dst, dst must not be touched before the future completed
func (s *Store) GetIntoAsync(ctx context.Context, key string, dst any) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.GetInto(ctx, key, dst)
	})
}

func (s *Store) ExistsAsync(ctx context.Context, key string) *async.Future[bool] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (bool, error) {
		return s.Exists(ctx, key)
	})
}

func (s *Store) SetAsync(ctx context.Context, key string, value any) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Set(ctx, key, value)
	})
}

func (s *Store) DeleteAsync(ctx context.Context, keys ...string) *async.Future[int64] {
	return async.Submit(s.pool, ctx, func(ctx context.Context) (int64, error) {
		return s.Delete(ctx, keys...)
	})
}

func (s *Store) SubscribeAsync(ctx context.Context, channel string, handler Handler) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Subscribe(ctx, channel, handler)
	})
}

func (s *Store) UnsubscribeAsync(ctx context.Context, channels ...string) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Unsubscribe(ctx, channels...)
	})
}

func (s *Store) PublishAsync(ctx context.Context, channel string, message any) *async.Future[struct{}] {
	return async.Go(s.pool, ctx, func(ctx context.Context) error {
		return s.Publish(ctx, channel, message)
	})
}
