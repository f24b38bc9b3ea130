/*
Package async provides the single asynchronous execution contract used by every facade:
a task is submitted to a bounded worker pool and its result is delivered through a Future.

	pool := async.NewPool(64)
	defer pool.Close()

	f := async.Submit(pool, ctx, func(ctx context.Context) (string, error) {
		return store.Get(ctx, "user:1")
	})
	f.OnFailure(func(err error) { log.Println(err) })
	value, err := f.Get(ctx)

A future fails with the same error the synchronous call would have returned.
*/
package async
