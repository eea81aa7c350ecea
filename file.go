package blockfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/internal/hash"
	"github.com/hupe1980/blockfs/internal/integrity"
	"github.com/hupe1980/blockfs/internal/layout"
)

var zeroBlock [BlockSize]byte

func validateName(name string) error {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: name must be non-empty and free of NUL bytes", ErrInvalidArgument)
	}
	if len(name) > NameSize {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrNameTooLong, len(name), NameSize)
	}
	return nil
}

// Create adds an empty file. The lowest free inode slot is claimed and its
// data block is zeroed on the device.
func (f *FileSystem) Create(ctx context.Context, name string) error {
	return f.do(ctx, "create", name, noFD, func() error {
		if err := validateName(name); err != nil {
			return err
		}
		if f.meta.Lookup(name) >= 0 {
			return ErrAlreadyExists
		}
		slot := f.meta.FreeSlot()
		if slot < 0 {
			return ErrNoFreeInode
		}

		if err := f.dev.WriteBlock(ctx, f.layout.DataBlock(slot), zeroBlock[:]); err != nil {
			return err
		}

		prev := f.meta.Inodes[slot]
		f.meta.Inodes[slot] = layout.Inode{Name: name, Checksum: hash.CRC16(zeroBlock[:])}
		f.meta.Map[slot] = true

		if err := f.persist(ctx); err != nil {
			f.meta.Inodes[slot] = prev
			f.meta.Map[slot] = false
			return err
		}
		return nil
	})
}

// Remove deletes a closed file. Its data block is left as is.
//
// Under FlushDeferred the removal stays in memory until the next flush.
func (f *FileSystem) Remove(ctx context.Context, name string) error {
	return f.do(ctx, "remove", name, noFD, func() error {
		slot := f.meta.Lookup(name)
		if slot < 0 {
			return ErrNotFound
		}
		if f.isOpen(slot) {
			return ErrFileStillOpen
		}

		f.meta.Map[slot] = false
		f.meta.Inodes[slot] = layout.Inode{}
		return f.persistIfEager(ctx)
	})
}

// Open verifies the file's data block and binds the lowest free
// descriptor to it with the cursor at 0.
func (f *FileSystem) Open(ctx context.Context, name string) (FD, error) {
	fd := noFD
	err := f.do(ctx, "open", name, noFD, func() error {
		var err error
		fd, err = f.open(ctx, name)
		return err
	})
	return fd, err
}

func (f *FileSystem) open(ctx context.Context, name string) (FD, error) {
	slot := f.meta.Lookup(name)
	if slot < 0 {
		return noFD, ErrNotFound
	}
	if f.isOpen(slot) {
		return noFD, ErrAlreadyOpen
	}
	device.Invalidate(f.dev)
	if err := integrity.VerifyBlock(ctx, f.dev, f.layout.DataBlock(slot), f.meta.Inodes[slot].Checksum); err != nil {
		return noFD, err
	}

	for i := 0; i < f.layout.InodeCount; i++ {
		if !f.desc[i].inUse {
			f.desc[i] = descriptor{inUse: true, inode: slot}
			return FD(i), nil
		}
	}
	return noFD, ErrNoFreeDescriptor
}

// Close refreshes the file's checksum from its stored data block, persists
// the metadata and releases the descriptor.
func (f *FileSystem) Close(ctx context.Context, fd FD) error {
	return f.do(ctx, "close", "", fd, func() error {
		d, err := f.descriptor(fd)
		if err != nil {
			return err
		}

		block := make([]byte, BlockSize)
		if err := f.dev.ReadBlock(ctx, f.layout.DataBlock(d.inode), block); err != nil {
			return err
		}
		f.meta.Inodes[d.inode].Checksum = hash.CRC16(block)

		if err := f.persist(ctx); err != nil {
			return err
		}
		f.desc[fd] = descriptor{}
		return nil
	})
}

func (f *FileSystem) descriptor(fd FD) (*descriptor, error) {
	if fd < 0 || int(fd) >= f.layout.InodeCount || !f.desc[fd].inUse {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDescriptor, fd)
	}
	return &f.desc[fd], nil
}

func (f *FileSystem) isOpen(slot int) bool {
	for i := 0; i < f.layout.InodeCount; i++ {
		if f.desc[i].inUse && f.desc[i].inode == slot {
			return true
		}
	}
	return false
}

func (f *FileSystem) openCount() int {
	n := 0
	for i := 0; i < f.layout.InodeCount; i++ {
		if f.desc[i].inUse {
			n++
		}
	}
	return n
}
