package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// IOLimitBytesPerSec is the maximum IO throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64

	// IOBurstBytes is the token bucket size. It is raised to
	// IOLimitBytesPerSec when smaller, so one second of budget can always be
	// spent at once.
	IOBurstBytes int

	// MaxInFlight is the maximum number of concurrent IO requests.
	// If 0, unlimited.
	MaxInFlight int64
}

// Controller governs device IO: a token bucket for bandwidth and a weighted
// semaphore for concurrent requests.
type Controller struct {
	cfg Config

	ioLimiter *rate.Limiter       // nil if unlimited
	inFlight  *semaphore.Weighted // nil if unlimited

	ioBytes  atomic.Int64
	requests atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.IOLimitBytesPerSec > 0 {
		burst := cfg.IOBurstBytes
		if int64(burst) < cfg.IOLimitBytesPerSec {
			burst = int(cfg.IOLimitBytesPerSec)
		}
		c.cfg.IOBurstBytes = burst
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), burst)
	}

	if cfg.MaxInFlight > 0 {
		c.inFlight = semaphore.NewWeighted(cfg.MaxInFlight)
	}

	return c
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the burst are admitted in burst-sized installments.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil {
		return nil
	}
	if bytes > 0 {
		c.ioBytes.Add(int64(bytes))
	}
	if c.ioLimiter == nil || bytes <= 0 {
		return ctx.Err()
	}
	for bytes > 0 {
		n := min(bytes, c.cfg.IOBurstBytes)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// Begin reserves an in-flight request slot, blocking while all are busy.
// Every successful Begin must be paired with End.
func (c *Controller) Begin(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.inFlight != nil {
		if err := c.inFlight.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.requests.Add(1)
	return nil
}

// End releases a slot reserved by Begin.
func (c *Controller) End() {
	if c == nil {
		return
	}
	if c.inFlight != nil {
		c.inFlight.Release(1)
	}
}

// IOBytes returns the total number of bytes admitted so far.
func (c *Controller) IOBytes() int64 {
	if c == nil {
		return 0
	}
	return c.ioBytes.Load()
}

// Requests returns the total number of requests admitted so far.
func (c *Controller) Requests() int64 {
	if c == nil {
		return 0
	}
	return c.requests.Load()
}
