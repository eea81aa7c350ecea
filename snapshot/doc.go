// Package snapshot exports and imports whole block device images as a
// compressed, checksummed stream.
//
//	f, _ := os.Create("disk.bfs")
//	_, err := snapshot.Export(ctx, dev, f, snapshot.WithCompression(snapshot.CompressionLZ4))
//
// Device reads and compression run concurrently. Streams are
// self-describing: the header records the codec used to encode it, the
// block size, the block count and the compression.
package snapshot
