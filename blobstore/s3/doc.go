// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store := blobs3.NewStore(client, "my-bucket", "images/disk0/")
//	dev, err := device.NewBlob(ctx, store, 66*device.BlockSize)
//
// Blocks are small, so Put issues a single PutObject. Create streams through
// the multipart uploader and is used for snapshot exports.
package s3
