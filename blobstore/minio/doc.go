// Package minio provides a MinIO (S3-compatible) implementation of
// blobstore.BlobStore, used as a block device backend for self-hosted
// object storage.
package minio
