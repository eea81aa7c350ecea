package blockfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/internal/integrity"
	"github.com/hupe1980/blockfs/internal/layout"
)

// Format constants re-exported from the on-disk layout.
const (
	BlockSize   = device.BlockSize
	MaxFiles    = layout.MaxFiles
	NameSize    = layout.NameSize
	MinCapacity = layout.MinCapacity
	MaxCapacity = layout.MaxCapacity
)

// FD is a file descriptor handle returned by Open.
type FD int

type descriptor struct {
	inUse  bool
	inode  int
	offset int
}

// FileSystem is a mounted blockfs partition.
//
// All methods are safe for concurrent use; they are serialized by a single
// mutex. After Unmount every method fails with ErrNotMounted.
type FileSystem struct {
	mu sync.Mutex

	dev     device.BlockDevice
	layout  layout.Layout
	meta    *layout.Metadata
	desc    [layout.MaxFiles]descriptor
	dirty   bool
	mounted bool

	metrics MetricsCollector
	logger  *Logger
	flush   FlushPolicy
}

// Format writes an empty file system of the given capacity to dev.
//
// capacity must not exceed the device size and must be at least MinCapacity.
// Capacities above MaxCapacity are truncated. Formatting discards any
// previous metadata.
func Format(ctx context.Context, dev device.BlockDevice, capacity int64, optFns ...Option) error {
	o := applyOptions(optFns)
	start := time.Now()

	l, err := format(ctx, dev, capacity)
	err = opError("format", "", noFD, err)

	o.metricsCollector.RecordOp("format", time.Since(start), err)
	o.logger.LogFormat(ctx, capacity, l.InodeCount, err)
	return err
}

func format(ctx context.Context, dev device.BlockDevice, capacity int64) (layout.Layout, error) {
	if capacity > dev.Size() {
		return layout.Layout{}, fmt.Errorf("%w: requested %d bytes, device has %d", ErrCapacityTooSmall, capacity, dev.Size())
	}
	l, err := layout.Compute(capacity)
	if err != nil {
		return layout.Layout{}, err
	}
	if err := writeMetadata(ctx, dev, layout.New(l), l); err != nil {
		return layout.Layout{}, err
	}
	return l, nil
}

// Mount reads and verifies the metadata on dev and returns the mounted
// file system. Mount fails with ErrMetadataCorrupted when the stored
// checksum does not match.
func Mount(ctx context.Context, dev device.BlockDevice, optFns ...Option) (*FileSystem, error) {
	o := applyOptions(optFns)
	start := time.Now()

	fsys, err := mount(ctx, dev, o)
	err = opError("mount", "", noFD, err)

	o.metricsCollector.RecordOp("mount", time.Since(start), err)
	if err != nil {
		o.logger.LogMount(ctx, "mount", 0, 0, err)
		return nil, err
	}
	o.logger.LogMount(ctx, "mount", fsys.layout.InodeCount, fsys.meta.Used(), nil)
	return fsys, nil
}

func mount(ctx context.Context, dev device.BlockDevice, o options) (*FileSystem, error) {
	device.Invalidate(dev)
	blocks, _, err := integrity.ReadMetadata(ctx, dev)
	if err != nil {
		return nil, err
	}
	meta, l, err := layout.Decode(blocks)
	if err != nil {
		return nil, err
	}

	fsys := &FileSystem{
		dev:     dev,
		layout:  l,
		meta:    meta,
		mounted: true,
		metrics: o.metricsCollector,
		logger:  o.logger,
		flush:   o.flushPolicy,
	}

	if err := integrity.CheckMetadata(ctx, dev); err != nil {
		return nil, err
	}
	return fsys, nil
}

// Unmount persists the metadata and releases the file system. It fails
// with ErrFileStillOpen while any descriptor is open.
func (f *FileSystem) Unmount(ctx context.Context) error {
	start := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	var inodes, used int
	err := f.checkMounted()
	if err == nil {
		inodes, used = f.layout.InodeCount, f.meta.Used()
		err = f.unmount(ctx)
	}
	err = opError("unmount", "", noFD, err)

	f.metrics.RecordOp("unmount", time.Since(start), err)
	f.logger.LogMount(ctx, "unmount", inodes, used, err)
	return err
}

func (f *FileSystem) unmount(ctx context.Context) error {
	if f.openCount() > 0 {
		return ErrFileStillOpen
	}
	if err := f.persist(ctx); err != nil {
		return err
	}
	if err := f.syncDevice(); err != nil {
		return err
	}

	f.mounted = false
	f.meta = nil
	f.layout = layout.Layout{}
	f.desc = [layout.MaxFiles]descriptor{}
	return nil
}

// Sync writes the in-memory metadata to the device and flushes devices
// that buffer writes.
func (f *FileSystem) Sync(ctx context.Context) error {
	return f.do(ctx, "sync", "", noFD, func() error {
		if err := f.persist(ctx); err != nil {
			return err
		}
		return f.syncDevice()
	})
}

// do runs fn under the lock and records the outcome.
func (f *FileSystem) do(ctx context.Context, op, name string, fd FD, fn func() error) error {
	start := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.checkMounted()
	if err == nil {
		err = fn()
	}
	err = opError(op, name, fd, err)

	f.metrics.RecordOp(op, time.Since(start), err)
	f.logger.LogOp(ctx, op, name, fd, err)
	return err
}

func (f *FileSystem) checkMounted() error {
	if !f.mounted {
		return ErrNotMounted
	}
	return nil
}

// persist seals the in-memory metadata and writes it to the device.
func (f *FileSystem) persist(ctx context.Context) error {
	if err := writeMetadata(ctx, f.dev, f.meta, f.layout); err != nil {
		f.dirty = true
		return err
	}
	f.dirty = false
	return nil
}

// persistIfEager is used by mutations whose write-back may be deferred.
func (f *FileSystem) persistIfEager(ctx context.Context) error {
	if f.flush == FlushDeferred {
		f.dirty = true
		return nil
	}
	return f.persist(ctx)
}

func (f *FileSystem) syncDevice() error {
	if s, ok := f.dev.(device.Syncer); ok {
		return s.Sync()
	}
	return nil
}

func writeMetadata(ctx context.Context, dev device.BlockDevice, m *layout.Metadata, l layout.Layout) error {
	m.Seal()
	for i, b := range m.Encode(l) {
		if err := dev.WriteBlock(ctx, uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}
