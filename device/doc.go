// Package device provides block-addressable storage for blockfs.
//
// A BlockDevice exposes fixed-size blocks of BlockSize bytes:
//
//   - Memory keeps the image in a byte slice (tests, scratch images).
//   - File maps blocks onto an image file and holds an exclusive advisory
//     lock on it while open.
//   - Blob stores each block as a separate object ("block-00000003") in a
//     blobstore.BlobStore such as S3 or MinIO.
//   - Throttled wraps any device with bandwidth and concurrency limits.
//   - Cached keeps recently used blocks in memory; Invalidate drops them.
package device
