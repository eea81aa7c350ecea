package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/internal/hash"
	"github.com/hupe1980/blockfs/internal/layout"
)

var (
	// ErrMetadataCorrupted means the stored metadata checksum does not match.
	ErrMetadataCorrupted = errors.New("integrity: metadata corrupted")
	// ErrFileCorrupted means a data block does not match its inode checksum.
	ErrFileCorrupted = errors.New("integrity: file corrupted")
	// ErrNotFound means no stored inode carries the requested name.
	ErrNotFound = errors.New("integrity: file not found")
)

// ReadMetadata reads the raw metadata blocks from dev.
// A stored inode count that cannot describe a layout is reported as
// ErrMetadataCorrupted.
func ReadMetadata(ctx context.Context, dev device.BlockDevice) ([][]byte, layout.Layout, error) {
	b0 := make([]byte, device.BlockSize)
	if err := dev.ReadBlock(ctx, 0, b0); err != nil {
		return nil, layout.Layout{}, err
	}

	l, err := layout.FromInodeCount(layout.InodeCountOf(b0))
	if err != nil {
		return nil, layout.Layout{}, fmt.Errorf("%w: %w", ErrMetadataCorrupted, err)
	}
	if l.Capacity() > dev.Size() {
		return nil, layout.Layout{}, fmt.Errorf("%w: layout needs %d bytes, device has %d", ErrMetadataCorrupted, l.Capacity(), dev.Size())
	}

	blocks := [][]byte{b0}
	if l.OverflowInodes > 0 {
		b1 := make([]byte, device.BlockSize)
		if err := dev.ReadBlock(ctx, 1, b1); err != nil {
			return nil, layout.Layout{}, err
		}
		blocks = append(blocks, b1)
	}
	return blocks, l, nil
}

// VerifyMetadata compares the stored checksum of raw metadata blocks with
// one computed over their content.
func VerifyMetadata(blocks [][]byte, l layout.Layout) error {
	computed, err := layout.ChecksumFromBlocks(blocks, l)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMetadataCorrupted, err)
	}
	if stored := layout.StoredChecksum(blocks[0]); computed != stored {
		return fmt.Errorf("%w: stored %#04x, computed %#04x", ErrMetadataCorrupted, stored, computed)
	}
	return nil
}

// CheckMetadata re-reads the metadata from dev and verifies its checksum.
func CheckMetadata(ctx context.Context, dev device.BlockDevice) error {
	blocks, l, err := ReadMetadata(ctx, dev)
	if err != nil {
		return err
	}
	return VerifyMetadata(blocks, l)
}

// CheckFile re-reads the stored inode table, finds name in it and verifies
// the checksum of its data block as currently stored.
func CheckFile(ctx context.Context, dev device.BlockDevice, name string) error {
	blocks, l, err := ReadMetadata(ctx, dev)
	if err != nil {
		return err
	}
	m, _, err := layout.Decode(blocks)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMetadataCorrupted, err)
	}

	slot := m.Lookup(name)
	if slot < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return VerifyBlock(ctx, dev, l.DataBlock(slot), m.Inodes[slot].Checksum)
}

// VerifyBlock reads block index and compares its checksum with want.
func VerifyBlock(ctx context.Context, dev device.BlockDevice, index uint32, want uint16) error {
	data := make([]byte, device.BlockSize)
	if err := dev.ReadBlock(ctx, index, data); err != nil {
		return err
	}
	if got := hash.CRC16(data); got != want {
		return fmt.Errorf("%w: block %d: stored %#04x, computed %#04x", ErrFileCorrupted, index, want, got)
	}
	return nil
}
