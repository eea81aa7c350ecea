package integrity

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/internal/hash"
	"github.com/hupe1980/blockfs/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// formatted writes metadata with one file "a" whose data block holds data.
func formatted(t *testing.T, blocks int64, data []byte) (*device.Memory, layout.Layout) {
	t.Helper()
	ctx := context.Background()

	dev := device.NewMemory(blocks * device.BlockSize)
	l, err := layout.Compute(dev.Size())
	require.NoError(t, err)

	block := make([]byte, device.BlockSize)
	copy(block, data)
	require.NoError(t, dev.WriteBlock(ctx, l.DataBlock(0), block))

	m := layout.New(l)
	m.Map[0] = true
	m.Inodes[0] = layout.Inode{Name: "a", Size: uint16(len(data)), Checksum: hash.CRC16(block)}
	m.Seal()
	for i, b := range m.Encode(l) {
		require.NoError(t, dev.WriteBlock(ctx, uint32(i), b))
	}
	return dev, l
}

func TestCheckMetadata(t *testing.T) {
	ctx := context.Background()

	for _, blocks := range []int64{4, 66} {
		dev, _ := formatted(t, blocks, []byte("hello"))
		require.NoError(t, CheckMetadata(ctx, dev))

		b0 := make([]byte, device.BlockSize)
		require.NoError(t, dev.ReadBlock(ctx, 0, b0))
		b0[layout.HeaderSize] ^= 0xFF
		require.NoError(t, dev.WriteBlock(ctx, 0, b0))

		assert.ErrorIs(t, CheckMetadata(ctx, dev), ErrMetadataCorrupted)
	}
}

func TestCheckMetadata_OverflowBlock(t *testing.T) {
	ctx := context.Background()
	dev, l := formatted(t, 66, nil)
	require.Equal(t, 2, l.MetadataBlocks())

	b1 := make([]byte, device.BlockSize)
	require.NoError(t, dev.ReadBlock(ctx, 1, b1))
	b1[0] = 'z'
	require.NoError(t, dev.WriteBlock(ctx, 1, b1))

	assert.ErrorIs(t, CheckMetadata(ctx, dev), ErrMetadataCorrupted)
}

func TestCheckMetadata_Unformatted(t *testing.T) {
	dev := device.NewMemory(4 * device.BlockSize)
	assert.ErrorIs(t, CheckMetadata(context.Background(), dev), ErrMetadataCorrupted)
}

func TestCheckMetadata_LayoutExceedsDevice(t *testing.T) {
	ctx := context.Background()
	big, _ := formatted(t, 10, nil)
	b0 := make([]byte, device.BlockSize)
	require.NoError(t, big.ReadBlock(ctx, 0, b0))

	small := device.NewMemory(4 * device.BlockSize)
	require.NoError(t, small.WriteBlock(ctx, 0, b0))
	assert.ErrorIs(t, CheckMetadata(ctx, small), ErrMetadataCorrupted)
}

func TestCheckFile(t *testing.T) {
	ctx := context.Background()
	dev, l := formatted(t, 4, []byte("hello"))

	require.NoError(t, CheckFile(ctx, dev, "a"))
	assert.ErrorIs(t, CheckFile(ctx, dev, "missing"), ErrNotFound)

	block := make([]byte, device.BlockSize)
	require.NoError(t, dev.ReadBlock(ctx, l.DataBlock(0), block))
	block[device.BlockSize-1] = 1
	require.NoError(t, dev.WriteBlock(ctx, l.DataBlock(0), block))

	assert.ErrorIs(t, CheckFile(ctx, dev, "a"), ErrFileCorrupted)
}

type brokenDevice struct {
	device.BlockDevice
	err error
}

func (d brokenDevice) ReadBlock(context.Context, uint32, []byte) error { return d.err }

func TestCheck_DeviceError(t *testing.T) {
	boom := errors.New("boom")
	dev, _ := formatted(t, 4, nil)
	broken := brokenDevice{BlockDevice: dev, err: boom}

	assert.ErrorIs(t, CheckMetadata(context.Background(), broken), boom)
	assert.ErrorIs(t, CheckFile(context.Background(), broken, "a"), boom)
}
