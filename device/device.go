package device

import (
	"context"
	"errors"
	"fmt"
)

// BlockSize is the size of every block in bytes.
const BlockSize = 2048

var (
	// ErrBlockSize is returned when a buffer is not exactly BlockSize bytes.
	ErrBlockSize = errors.New("device: buffer is not one block")
	// ErrOutOfRange is returned for block indices beyond the device size.
	ErrOutOfRange = errors.New("device: block index out of range")
	// ErrClosed is returned by devices used after Close.
	ErrClosed = errors.New("device: closed")
	// ErrLocked is returned when an image file is held by another process.
	ErrLocked = errors.New("device: image is locked by another process")
)

// BlockDevice is a flat array of fixed-size blocks.
//
// ReadBlock and WriteBlock transfer exactly one block; p must be BlockSize
// bytes long. Implementations must be safe for concurrent use.
type BlockDevice interface {
	ReadBlock(ctx context.Context, index uint32, p []byte) error
	WriteBlock(ctx context.Context, index uint32, p []byte) error
	// Size returns the device capacity in bytes.
	Size() int64
}

// Syncer is implemented by devices that buffer writes.
type Syncer interface {
	Sync() error
}

// Invalidator is implemented by devices that cache block content.
type Invalidator interface {
	Invalidate()
}

// Invalidate drops cached content in dev and in every device it wraps, so
// that the next reads observe the underlying storage.
func Invalidate(dev BlockDevice) {
	for dev != nil {
		if inv, ok := dev.(Invalidator); ok {
			inv.Invalidate()
		}
		u, ok := dev.(interface{ Unwrap() BlockDevice })
		if !ok {
			return
		}
		dev = u.Unwrap()
	}
}

// Blocks returns the number of whole blocks on dev.
func Blocks(dev BlockDevice) uint32 {
	return uint32(dev.Size() / BlockSize)
}

func checkIO(size int64, index uint32, p []byte) error {
	if len(p) != BlockSize {
		return fmt.Errorf("%w: got %d bytes", ErrBlockSize, len(p))
	}
	if (int64(index)+1)*BlockSize > size {
		return fmt.Errorf("%w: block %d, device has %d", ErrOutOfRange, index, size/BlockSize)
	}
	return nil
}

func offset(index uint32) int64 {
	return int64(index) * BlockSize
}
