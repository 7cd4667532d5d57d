package resource

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxUploads is used when Config.MaxUploads is not positive.
const DefaultMaxUploads = 4

// Config holds resource limits.
type Config struct {
	// MaxUploads is the maximum number of concurrent uploads.
	MaxUploads int64

	// MemoryLimitBytes caps the bytes held by in-flight uploads.
	// If 0, unlimited.
	MemoryLimitBytes int64

	// BytesPerSec is the maximum upload throughput. If 0, unlimited.
	BytesPerSec int64
}

// Controller enforces a Config.
type Controller struct {
	cfg Config

	uploads *semaphore.Weighted

	memSem *semaphore.Weighted // nil if unlimited

	io *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxUploads <= 0 {
		cfg.MaxUploads = DefaultMaxUploads
	}

	c := &Controller{
		cfg:     cfg,
		uploads: semaphore.NewWeighted(cfg.MaxUploads),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.BytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.BytesPerSec), int(cfg.BytesPerSec))
	}
	return c
}

// AcquireUpload reserves an upload slot, blocking while all are busy.
func (c *Controller) AcquireUpload(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.uploads.Acquire(ctx, 1)
}

// ReleaseUpload releases an upload slot.
func (c *Controller) ReleaseUpload() {
	if c == nil {
		return
	}
	c.uploads.Release(1)
}

// AcquireMemory reserves bytes, blocking until they are available or ctx
// is done. A request larger than the whole limit can never succeed and
// fails immediately.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || c.memSem == nil || bytes <= 0 {
		return nil
	}
	if bytes > c.cfg.MemoryLimitBytes {
		return fmt.Errorf("resource: %d bytes exceed the memory limit of %d", bytes, c.cfg.MemoryLimitBytes)
	}
	return c.memSem.Acquire(ctx, bytes)
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || c.memSem == nil || bytes <= 0 {
		return
	}
	c.memSem.Release(bytes)
}

// AcquireIO waits until the rate limit allows bytes. Requests larger than
// the burst are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.io == nil {
		return nil
	}
	burst := c.io.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.io.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
