package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/blockfs/blobstore"
)

// Blob is a BlockDevice that keeps one object per block in a BlobStore.
// Blocks that were never written read as zeros.
type Blob struct {
	store blobstore.BlobStore
	size  int64
}

// NewBlob returns a device of the given size on top of store.
func NewBlob(store blobstore.BlobStore, size int64) *Blob {
	return &Blob{store: store, size: size}
}

// BlockName returns the object name used for block index.
func BlockName(index uint32) string {
	return fmt.Sprintf("block-%08d", index)
}

func (b *Blob) ReadBlock(ctx context.Context, index uint32, p []byte) error {
	if err := checkIO(b.size, index, p); err != nil {
		return err
	}
	data, err := b.store.Get(ctx, BlockName(index))
	if errors.Is(err, blobstore.ErrNotFound) {
		clear(p)
		return nil
	}
	if err != nil {
		return fmt.Errorf("device: read block %d: %w", index, err)
	}
	if len(data) != BlockSize {
		return fmt.Errorf("device: read block %d: %w: object has %d bytes", index, ErrBlockSize, len(data))
	}
	copy(p, data)
	return nil
}

func (b *Blob) WriteBlock(ctx context.Context, index uint32, p []byte) error {
	if err := checkIO(b.size, index, p); err != nil {
		return err
	}
	data := make([]byte, BlockSize)
	copy(data, p)
	if err := b.store.Put(ctx, BlockName(index), data); err != nil {
		return fmt.Errorf("device: write block %d: %w", index, err)
	}
	return nil
}

func (b *Blob) Size() int64 {
	return b.size
}
