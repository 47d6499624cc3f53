package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opsipintar/catalog/pkg/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTask(t *testing.T) {
	pool := workerpool.New(4)
	ctx := context.Background()

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, pool.Submit(ctx, func(context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Wait())
	assert.Equal(t, int64(100), count.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := workerpool.New(3)
	ctx := context.Background()

	var running, peak atomic.Int64
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(ctx, func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}
	require.NoError(t, pool.Wait())
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestPoolJoinsErrorsAndRecoversPanics(t *testing.T) {
	pool := workerpool.New(2)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, pool.Submit(ctx, func(context.Context) error { return boom }))
	require.NoError(t, pool.Submit(ctx, func(context.Context) error { panic("bad task") }))
	require.NoError(t, pool.Submit(ctx, func(context.Context) error { return nil }))

	err := pool.Wait()
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "task panicked: bad task")
}

func TestSubmitAfterWait(t *testing.T) {
	pool := workerpool.New(1)
	require.NoError(t, pool.Wait())
	assert.ErrorIs(t, pool.Submit(context.Background(), func(context.Context) error { return nil }), workerpool.ErrPoolClosed)
	require.NoError(t, pool.Wait(), "Wait is idempotent")
}

func TestSubmitHonoursContext(t *testing.T) {
	pool := workerpool.New(1)
	release := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pool.Submit(ctx, func(context.Context) error { return nil }), context.Canceled)

	close(release)
	require.NoError(t, pool.Wait())
}
