package async

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/semaphore"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	Logger = logger.GetLogger("async")
)

// DefaultWorkers is the number of operations a pool runs concurrently if not configured otherwise
const DefaultWorkers = 64

// ErrPoolClosed is returned by futures submitted after Close
var ErrPoolClosed = database.NewError(database.CodeBackend, "worker pool is closed")

// Pool runs asynchronous facade operations with bounded concurrency.
//
// Submitting never blocks: every task gets its own goroutine which waits for one of the
// pool's slots before running. The task's context bounds that wait as well.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	running atomic.Int64
}

// NewPool creates a pool that runs at most size tasks at the same time.
// A size <= 0 uses DefaultWorkers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the maximum number of concurrently running tasks
func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of tasks currently holding a slot
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Close rejects new tasks and waits until all submitted tasks completed.
// Calling Close more than once is safe.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit runs fn on the pool and returns a future for its result.
// fn receives ctx; an error or panic of fn fails the future.
func Submit[T any](p *Pool, ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return Failed[T](ErrPoolClosed)
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	f := newFuture[T]()
	go func() {
		defer p.wg.Done()

		// Acquire a slot (blocks if all workers are busy)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			var zero T
			f.complete(zero, err)
			return
		}
		p.running.Add(1)
		defer func() {
			p.running.Add(-1)
			p.sem.Release(1)
		}()

		f.complete(run(ctx, fn))
	}()
	return f
}

// run calls fn and converts a panic into an error
func run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("async task panicked: %v\n%s", r, debug.Stack())
			var zero T
			val, err = zero, fmt.Errorf("async task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Go is Submit for operations without a result value.
func Go(p *Pool, ctx context.Context, fn func(ctx context.Context) error) *Future[struct{}] {
	return Submit(p, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}
