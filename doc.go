// Package blockfs implements a minimal single-partition file system on top
// of a block device.
//
// A partition holds at most 64 files. Every file owns exactly one 2048-byte
// data block, so file size is bounded by the block size. Metadata (inode
// count, occupancy map and inode table) lives in the first one or two blocks
// and is protected by a CRC-16 checksum; each data block is protected by a
// checksum stored in its inode.
//
// # Quick Start
//
//	ctx := context.Background()
//	dev := device.NewMemory(25 * blockfs.BlockSize)
//
//	_ = blockfs.Format(ctx, dev, dev.Size())
//	fsys, _ := blockfs.Mount(ctx, dev)
//	defer fsys.Unmount(ctx)
//
//	_ = fsys.Create(ctx, "a.txt")
//	fd, _ := fsys.Open(ctx, "a.txt")
//	fsys.Write(ctx, fd, []byte("hello"))
//	fsys.Close(ctx, fd) // refreshes the data checksum
//
// # Devices
//
// Any device.BlockDevice works: in-memory images, image files (locked for
// exclusive use), or object storage through device.Blob with the S3 or
// MinIO blob stores.
//
// # Checksums
//
// Writes do not update the data checksum; Close does. Open verifies the
// data block before handing out a descriptor, and CheckFile/CheckMetadata
// re-read everything from the device rather than trusting memory.
//
// # Flushing
//
// By default every structural change (create, remove, close, unmount) is
// written to the device before the call returns. WithDeferredFlush keeps
// removals in memory until the next close, create, Sync or Unmount.
package blockfs
