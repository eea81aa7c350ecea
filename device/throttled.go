package device

import (
	"context"

	"github.com/hupe1980/blockfs/internal/resource"
)

// ThrottleConfig bounds device IO.
type ThrottleConfig struct {
	// BytesPerSec limits IO bandwidth. 0 means unlimited.
	BytesPerSec int64
	// MaxInFlight limits concurrent block requests. 0 means unlimited.
	MaxInFlight int64
}

// Throttled wraps a BlockDevice with bandwidth and concurrency limits.
type Throttled struct {
	dev BlockDevice
	rc  *resource.Controller
}

// NewThrottled wraps dev.
func NewThrottled(dev BlockDevice, cfg ThrottleConfig) *Throttled {
	return &Throttled{
		dev: dev,
		rc: resource.NewController(resource.Config{
			IOLimitBytesPerSec: cfg.BytesPerSec,
			MaxInFlight:        cfg.MaxInFlight,
		}),
	}
}

func (t *Throttled) ReadBlock(ctx context.Context, index uint32, p []byte) error {
	if err := t.admit(ctx, len(p)); err != nil {
		return err
	}
	defer t.rc.End()
	return t.dev.ReadBlock(ctx, index, p)
}

func (t *Throttled) WriteBlock(ctx context.Context, index uint32, p []byte) error {
	if err := t.admit(ctx, len(p)); err != nil {
		return err
	}
	defer t.rc.End()
	return t.dev.WriteBlock(ctx, index, p)
}

func (t *Throttled) admit(ctx context.Context, n int) error {
	if err := t.rc.Begin(ctx); err != nil {
		return err
	}
	if err := t.rc.AcquireIO(ctx, n); err != nil {
		t.rc.End()
		return err
	}
	return nil
}

func (t *Throttled) Size() int64 {
	return t.dev.Size()
}

// Sync forwards to the wrapped device when it buffers writes.
func (t *Throttled) Sync() error {
	if s, ok := t.dev.(Syncer); ok {
		return s.Sync()
	}
	return nil
}

// Unwrap returns the wrapped device.
func (t *Throttled) Unwrap() BlockDevice {
	return t.dev
}

// IOBytes returns the number of bytes transferred through the wrapper.
func (t *Throttled) IOBytes() int64 {
	return t.rc.IOBytes()
}

// Requests returns the number of block requests admitted.
func (t *Throttled) Requests() int64 {
	return t.rc.Requests()
}
