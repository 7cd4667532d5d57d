package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Uploads(t *testing.T) {
	c := NewController(Config{MaxUploads: 2})

	require.NoError(t, c.AcquireUpload(t.Context()))
	require.NoError(t, c.AcquireUpload(t.Context()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireUpload(ctx), context.DeadlineExceeded)

	c.ReleaseUpload()
	require.NoError(t, c.AcquireUpload(t.Context()))
}

func TestController_DefaultUploads(t *testing.T) {
	c := NewController(Config{})
	for range DefaultMaxUploads {
		require.NoError(t, c.AcquireUpload(t.Context()))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireUpload(ctx), context.DeadlineExceeded)
}

func TestController_UploadsBoundConcurrency(t *testing.T) {
	c := NewController(Config{MaxUploads: 3})

	var (
		wg      sync.WaitGroup
		active  atomic.Int64
		highest atomic.Int64
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, c.AcquireUpload(context.Background()))
			defer c.ReleaseUpload()
			n := active.Add(1)
			for {
				h := highest.Load()
				if n <= h || highest.CompareAndSwap(h, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, highest.Load(), int64(3))
}

func TestController_MemoryBlocking(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 100))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(ctx, 1), context.DeadlineExceeded)

	c.ReleaseMemory(10)
	require.NoError(t, c.AcquireMemory(context.Background(), 10))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, c.AcquireMemory(ctx2, 1), context.DeadlineExceeded)

	assert.Error(t, c.AcquireMemory(context.Background(), 101))
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1<<40))
	require.NoError(t, c.AcquireMemory(context.Background(), 1<<40))
	c.ReleaseMemory(1 << 40)
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	ctx := context.Background()
	assert.NoError(t, c.AcquireUpload(ctx))
	c.ReleaseUpload()
	assert.NoError(t, c.AcquireMemory(ctx, 10))
	c.ReleaseMemory(10)
	assert.NoError(t, c.AcquireIO(ctx, 1<<30))
}

func TestController_IOLimit(t *testing.T) {
	c := NewController(Config{BytesPerSec: 1000})

	// The bucket starts full, so the first second of budget is free and a
	// request twice the burst has to wait for about one more second.
	start := time.Now()
	require.NoError(t, c.AcquireIO(context.Background(), 2000))
	assert.GreaterOrEqual(t, time.Since(start), 800*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 1000))
}
