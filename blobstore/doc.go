// Package blobstore provides object storage for blob-backed block devices.
//
// BlobStore is the interface for reading and writing whole named blobs.
// Implementations must be safe for concurrent use and must replace blobs
// atomically on Put.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: a directory on the local file system (temp file + rename)
//   - s3.Store: Amazon S3 (aws-sdk-go-v2), multipart uploads for Create
//   - minio.Store: MinIO and other S3-compatible services (minio-go)
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error
//	    Create(ctx, name) (WritableBlob, error)
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Get on a missing blob must return an error satisfying
// errors.Is(err, ErrNotFound).
package blobstore
