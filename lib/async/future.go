package async

import (
	"context"
)

// Future is the handle of an asynchronous operation.
// It is completed exactly once, either with a value or with an error.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete stores the result and releases all waiters. Must be called exactly once.
func (f *Future[T]) complete(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Completed returns a future that already succeeded with val
func Completed[T any](val T) *Future[T] {
	f := newFuture[T]()
	f.complete(val, nil)
	return f
}

// Failed returns a future that already failed with err
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// --------------------------------------------------------------------------
// Waiting
// --------------------------------------------------------------------------

// Done returns a channel that is closed once the future completed
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for the result or until ctx is done.
// If ctx ends first, ctx.Err() is returned and the operation keeps running.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the result is available
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Err blocks until the future completed and returns only its error
func (f *Future[T]) Err() error {
	<-f.done
	return f.err
}

// OrZero blocks until the result is available and returns the zero value on failure
func (f *Future[T]) OrZero() T {
	<-f.done
	if f.err != nil {
		var zero T
		return zero
	}
	return f.val
}

// --------------------------------------------------------------------------
// Callbacks
// --------------------------------------------------------------------------

// OnSuccess calls fn with the value once the future succeeded.
// fn runs on its own goroutine and is not called on failure.
func (f *Future[T]) OnSuccess(fn func(T)) *Future[T] {
	go func() {
		<-f.done
		if f.err == nil {
			fn(f.val)
		}
	}()
	return f
}

// OnFailure calls fn with the error once the future failed.
// fn runs on its own goroutine and is not called on success.
func (f *Future[T]) OnFailure(fn func(error)) *Future[T] {
	go func() {
		<-f.done
		if f.err != nil {
			fn(f.err)
		}
	}()
	return f
}
