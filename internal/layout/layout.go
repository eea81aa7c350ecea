package layout

import (
	"errors"
	"fmt"

	"github.com/hupe1980/blockfs/device"
)

const (
	// BlockSize is the device block size.
	BlockSize = device.BlockSize
	// MaxFiles is the length of the occupancy map and the hard ceiling on inodes.
	MaxFiles = 64
	// NameSize is the maximum file name length in bytes.
	NameSize = 32
	// InodeSize is the encoded size of one inode record.
	InodeSize = NameSize + 2 + 2
	// HeaderSize is the superblock, occupancy map and metadata checksum.
	HeaderSize = 1 + MaxFiles + 2
	// PrimaryCapacity is the number of inode records that fit in block 0.
	PrimaryCapacity = (BlockSize - HeaderSize) / InodeSize
	// MinCapacity is one metadata block plus one data block.
	MinCapacity = 2 * BlockSize
	// MaxCapacity is two metadata blocks plus MaxFiles data blocks.
	MaxCapacity = (2 + MaxFiles) * BlockSize
)

var (
	// ErrCapacityTooSmall is returned when a partition cannot hold a single file.
	ErrCapacityTooSmall = errors.New("layout: capacity too small")
	// ErrCorrupt is returned when stored metadata cannot describe a valid layout.
	ErrCorrupt = errors.New("layout: corrupt metadata")
	// ErrShortMetadata is returned by Decode when the overflow block is needed
	// but was not supplied.
	ErrShortMetadata = errors.New("layout: missing overflow metadata block")
)

// Layout describes where inodes and data blocks live on a device.
type Layout struct {
	InodeCount     int
	PrimaryInodes  int
	OverflowInodes int
}

// Compute derives the layout of a partition of the given capacity.
// Capacities above MaxCapacity are truncated.
func Compute(capacity int64) (Layout, error) {
	if capacity < MinCapacity {
		return Layout{}, fmt.Errorf("%w: %d bytes, need %d", ErrCapacityTooSmall, capacity, MinCapacity)
	}
	capacity = min(capacity, MaxCapacity)

	budget := int(capacity/BlockSize) - 1
	if budget > PrimaryCapacity {
		// One data block is given up for the overflow inode block.
		budget--
		return Layout{
			InodeCount:     budget,
			PrimaryInodes:  PrimaryCapacity,
			OverflowInodes: budget - PrimaryCapacity,
		}, nil
	}
	return Layout{InodeCount: budget, PrimaryInodes: budget}, nil
}

// FromInodeCount recomputes the primary/overflow split from a stored count.
func FromInodeCount(n int) (Layout, error) {
	if n <= 0 || n > MaxFiles {
		return Layout{}, fmt.Errorf("%w: inode count %d", ErrCorrupt, n)
	}
	if n > PrimaryCapacity {
		return Layout{InodeCount: n, PrimaryInodes: PrimaryCapacity, OverflowInodes: n - PrimaryCapacity}, nil
	}
	return Layout{InodeCount: n, PrimaryInodes: n}, nil
}

// MetadataBlocks returns 2 when an overflow block exists, 1 otherwise.
func (l Layout) MetadataBlocks() int {
	if l.OverflowInodes > 0 {
		return 2
	}
	return 1
}

// DataBlock returns the block index holding the data of inode i.
func (l Layout) DataBlock(i int) uint32 {
	return uint32(i + l.MetadataBlocks())
}

// Blocks returns the number of blocks the layout occupies.
func (l Layout) Blocks() int {
	return l.MetadataBlocks() + l.InodeCount
}

// Capacity returns the number of bytes the layout occupies.
func (l Layout) Capacity() int64 {
	return int64(l.Blocks()) * BlockSize
}

func (l Layout) String() string {
	return fmt.Sprintf("inodes=%d primary=%d overflow=%d", l.InodeCount, l.PrimaryInodes, l.OverflowInodes)
}
