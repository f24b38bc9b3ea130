package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletedAndFailed(t *testing.T) {
	v, err := Completed(7).Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	boom := errors.New("boom")
	_, err = Failed[int](boom).Wait()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, Failed[int](boom).OrZero())
	assert.Equal(t, 7, Completed(7).OrZero())
}

func TestSubmitPropagatesResult(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	f := Submit(p, context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	// error kinds survive the async boundary
	f = Submit(p, context.Background(), func(ctx context.Context) (string, error) {
		return "", database.NotFound("key", "a")
	})
	_, err = f.Wait()
	assert.True(t, errors.Is(err, database.ErrNotFound))
	assert.Error(t, f.Err())
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	f := Submit(p, context.Background(), func(ctx context.Context) (int, error) {
		panic("kaputt")
	})
	_, err := f.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaputt")
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 3
	p := NewPool(size)

	var current, peak atomic.Int64
	futures := make([]*Future[struct{}], 0, 20)
	for i := 0; i < 20; i++ {
		futures = append(futures, Go(p, context.Background(), func(ctx context.Context) error {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return nil
		}))
	}
	for _, f := range futures {
		require.NoError(t, f.Err())
	}
	p.Close()

	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.Equal(t, 0, p.Running())
}

func TestSubmitAfterClose(t *testing.T) {
	p := NewPool(1)
	p.Close()
	p.Close()

	_, err := Submit(p, context.Background(), func(ctx context.Context) (int, error) {
		return 1, nil
	}).Wait()
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestQueuedTaskHonoursContext(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	blocker := Go(p, context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})

	// wait until the blocker holds the only slot
	require.Eventually(t, func() bool { return p.Running() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	queued := Submit(p, ctx, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	cancel()

	_, err := queued.Wait()
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, blocker.Err())
}

func TestGetHonoursContext(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	f := Go(p, context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	_, err = f.Wait()
	assert.NoError(t, err)
}

func TestCallbacks(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)

	var got int
	var gotErr error
	Completed(5).
		OnSuccess(func(v int) { got = v; wg.Done() }).
		OnFailure(func(error) { t.Error("OnFailure called for a successful future") })
	Failed[int](errors.New("x")).
		OnSuccess(func(int) { t.Error("OnSuccess called for a failed future") }).
		OnFailure(func(err error) { gotErr = err; wg.Done() })

	wg.Wait()
	assert.Equal(t, 5, got)
	assert.EqualError(t, gotErr, "x")
}
