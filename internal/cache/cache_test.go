package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCompute_Memoizes(t *testing.T) {
	c := New(16, time.Minute)
	ctx := context.Background()
	calls := 0

	fn := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrCompute(ctx, c, "k", time.Minute, fn)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c := New(16, time.Minute)
	ctx := context.Background()
	boom := errors.New("boom")
	calls := 0

	_, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_ExpiresAfterTTL(t *testing.T) {
	c := New(16, time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, _ := GetOrCompute(ctx, c, "k", 5*time.Minute, fn)
	assert.Equal(t, 1, v)

	now = now.Add(4 * time.Minute)
	v, _ = GetOrCompute(ctx, c, "k", 5*time.Minute, fn)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	v, _ = GetOrCompute(ctx, c, "k", 5*time.Minute, fn)
	assert.Equal(t, 2, v)
}

func TestGetOrCompute_ConcurrentMissesShareOneCall(t *testing.T) {
	c := New(16, time.Minute)
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := GetOrCompute(ctx, c, "shared", time.Minute, func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestGetOrCompute_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New(16, time.Minute)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return 7, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := GetOrCompute(firstCtx, c, "k", time.Minute, fn)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := GetOrCompute(context.Background(), c, "k", time.Minute, fn)
		second <- result{v, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Equal(t, 7, r.v)
	case <-time.After(time.Second):
		t.Fatal("live caller never got a result")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestInvalidate(t *testing.T) {
	c := New(16, time.Minute)
	ctx := context.Background()
	_, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	c.Invalidate("k")
	assert.Equal(t, 0, c.Len())
}
