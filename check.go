package blockfs

import (
	"context"
	"time"

	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/internal/integrity"
)

// CheckMetadata re-reads the metadata blocks from the device and verifies
// their checksum. No descriptor may be open.
func (f *FileSystem) CheckMetadata(ctx context.Context) error {
	return f.check(ctx, "check-metadata", "", func() error {
		if f.openCount() > 0 {
			return ErrFileStillOpen
		}
		return integrity.CheckMetadata(ctx, f.dev)
	})
}

// CheckFile verifies name's data block against the checksum in the inode
// table as stored on the device. The file must not be open.
func (f *FileSystem) CheckFile(ctx context.Context, name string) error {
	return f.check(ctx, "check-file", name, func() error {
		slot := f.meta.Lookup(name)
		if slot >= 0 && f.isOpen(slot) {
			return ErrFileStillOpen
		}
		return integrity.CheckFile(ctx, f.dev, name)
	})
}

func (f *FileSystem) check(ctx context.Context, op, name string, fn func() error) error {
	start := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.checkMounted()
	if err == nil {
		device.Invalidate(f.dev)
		err = fn()
	}
	err = opError(op, name, noFD, err)

	target := name
	if target == "" {
		target = "metadata"
	}
	f.metrics.RecordOp(op, time.Since(start), err)
	f.logger.LogCheck(ctx, target, err)
	return err
}
