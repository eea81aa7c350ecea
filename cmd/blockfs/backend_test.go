package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/blockfs"
	"github.com/hupe1980/blockfs/blobstore"
	"github.com/hupe1980/blockfs/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDevice_FileStack(t *testing.T) {
	ctx := context.Background()
	c := defaultConfig()
	c.Image = filepath.Join(t.TempDir(), "disk.img")
	c.CacheBlocks = 8
	c.Throttle.MaxInFlight = 4

	dev, closeDev, err := c.openDevice(ctx, 10*blockfs.BlockSize)
	require.NoError(t, err)
	defer closeDev()

	throttled, ok := dev.(*device.Throttled)
	require.True(t, ok)
	cached, ok := throttled.Unwrap().(*device.Cached)
	require.True(t, ok)
	_, ok = cached.Unwrap().(*device.File)
	require.True(t, ok)

	require.NoError(t, blockfs.Format(ctx, dev, dev.Size()))
	fsys, err := blockfs.Mount(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 9, fsys.Info().InodeCount)
	require.NoError(t, fsys.Unmount(ctx))
}

func TestOpenDevice_MissingImage(t *testing.T) {
	c := defaultConfig()
	c.Image = filepath.Join(t.TempDir(), "missing.img")

	_, _, err := c.openDevice(context.Background(), 0)
	require.Error(t, err)
}

func TestImageSize(t *testing.T) {
	ctx := context.Background()

	t.Run("formatted", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		dev := device.NewBlob(store, 66*blockfs.BlockSize)
		require.NoError(t, blockfs.Format(ctx, dev, dev.Size()))

		size, err := imageSize(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, int64(66*blockfs.BlockSize), size)
	})

	t.Run("small", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		dev := device.NewBlob(store, 25*blockfs.BlockSize)
		require.NoError(t, blockfs.Format(ctx, dev, dev.Size()))

		size, err := imageSize(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, int64(25*blockfs.BlockSize), size)
	})

	t.Run("empty store", func(t *testing.T) {
		size, err := imageSize(ctx, blobstore.NewMemoryStore())
		require.NoError(t, err)
		assert.Equal(t, int64(blockfs.MaxCapacity), size)
	})
}
