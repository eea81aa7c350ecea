package device

import (
	"context"

	"github.com/hupe1980/blockfs/internal/cache"
)

// Cached wraps a BlockDevice with a write-through LRU cache of whole
// blocks. It suits slow devices such as Blob that are mounted by a single
// writer; blocks changed behind its back stay stale until Invalidate.
type Cached struct {
	dev BlockDevice
	lru *cache.LRU
}

// NewCached wraps dev with a cache of at most blocks entries.
func NewCached(dev BlockDevice, blocks int) *Cached {
	return &Cached{dev: dev, lru: cache.NewLRU(blocks)}
}

func (c *Cached) ReadBlock(ctx context.Context, index uint32, p []byte) error {
	if err := checkIO(c.dev.Size(), index, p); err != nil {
		return err
	}
	if b, ok := c.lru.Get(index); ok {
		copy(p, b)
		return nil
	}
	if err := c.dev.ReadBlock(ctx, index, p); err != nil {
		return err
	}
	c.lru.Set(index, clone(p))
	return nil
}

func (c *Cached) WriteBlock(ctx context.Context, index uint32, p []byte) error {
	if err := c.dev.WriteBlock(ctx, index, p); err != nil {
		// The device may hold either version now.
		c.lru.Remove(index)
		return err
	}
	c.lru.Set(index, clone(p))
	return nil
}

func (c *Cached) Size() int64 {
	return c.dev.Size()
}

// Sync forwards to the wrapped device when it buffers writes.
func (c *Cached) Sync() error {
	if s, ok := c.dev.(Syncer); ok {
		return s.Sync()
	}
	return nil
}

// Invalidate drops every cached block so that subsequent reads reach the
// wrapped device.
func (c *Cached) Invalidate() {
	c.lru.Purge()
}

// Unwrap returns the wrapped device.
func (c *Cached) Unwrap() BlockDevice {
	return c.dev
}

// Stats returns cache hits and misses.
func (c *Cached) Stats() (hits, misses int64) {
	return c.lru.Stats()
}

func clone(p []byte) []byte {
	b := make([]byte, len(p))
	copy(b, p)
	return b
}
