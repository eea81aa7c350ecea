package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/blockfs/blobstore"
	blobminio "github.com/hupe1980/blockfs/blobstore/minio"
	blobs3 "github.com/hupe1980/blockfs/blobstore/s3"
	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/internal/layout"
)

// openDevice opens the configured device. When size is positive the device
// is created (or resized) to that many bytes; otherwise an existing device
// is opened and, for object stores, sized from its metadata.
func (c *Config) openDevice(ctx context.Context, size int64) (device.BlockDevice, func() error, error) {
	var (
		dev     device.BlockDevice
		closeFn = func() error { return nil }
	)

	switch c.Backend {
	case backendFile:
		var (
			f   *device.File
			err error
		)
		if size > 0 {
			f, err = device.CreateFile(c.Image, size)
		} else {
			f, err = device.OpenFile(c.Image)
		}
		if err != nil {
			return nil, nil, err
		}
		dev, closeFn = f, f.Close
	case backendDir, backendS3, backendMinIO:
		store, err := c.blobStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		if size <= 0 {
			if size, err = imageSize(ctx, store); err != nil {
				return nil, nil, err
			}
		}
		dev = device.NewBlob(store, size)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.CacheBlocks > 0 {
		dev = device.NewCached(dev, c.CacheBlocks)
	}
	if c.Throttle.BytesPerSec > 0 || c.Throttle.MaxInFlight > 0 {
		dev = device.NewThrottled(dev, device.ThrottleConfig{
			BytesPerSec: c.Throttle.BytesPerSec,
			MaxInFlight: c.Throttle.MaxInFlight,
		})
	}
	return dev, closeFn, nil
}

// blobStore returns the object store behind the dir, s3 and minio backends.
func (c *Config) blobStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch c.Backend {
	case backendFile:
		return nil, fmt.Errorf("backend %q has no object store", c.Backend)
	case backendDir:
		return blobstore.NewLocalStore(c.Dir), nil
	case backendMinIO:
		client, err := minio.New(c.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(c.MinIO.AccessKey, c.MinIO.SecretKey, ""),
			Secure: c.MinIO.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("creating minio client: %w", err)
		}
		return blobminio.NewStore(client, c.MinIO.Bucket, c.MinIO.Prefix), nil
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if c.S3.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(c.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.S3.Endpoint)
		}
		o.UsePathStyle = c.S3.PathStyle
	})
	return blobs3.NewStore(client, c.S3.Bucket, c.S3.Prefix), nil
}

// imageSize derives the device size of an existing object store image from
// the inode count in block 0. Unreadable counts fall back to the largest
// layout so that mounting reports the corruption.
func imageSize(ctx context.Context, store blobstore.BlobStore) (int64, error) {
	block0 := make([]byte, device.BlockSize)
	head := device.NewBlob(store, device.BlockSize)
	if err := head.ReadBlock(ctx, 0, block0); err != nil {
		return 0, fmt.Errorf("reading block 0: %w", err)
	}

	l, err := layout.FromInodeCount(layout.InodeCountOf(block0))
	if errors.Is(err, layout.ErrCorrupt) {
		return layout.MaxCapacity, nil
	}
	if err != nil {
		return 0, err
	}
	return l.Capacity(), nil
}
