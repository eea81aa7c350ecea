package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/blockfs/internal/fs"
)

// File is a BlockDevice backed by an image file.
//
// The image is locked exclusively for as long as the device is open.
type File struct {
	mu     sync.RWMutex
	f      fs.File
	path   string
	size   int64
	closed bool
}

// FileOption configures a File device.
type FileOption func(*fileOptions)

type fileOptions struct {
	fs fs.FileSystem
}

// WithFileSystem sets the file system used to open the image.
func WithFileSystem(fsys fs.FileSystem) FileOption {
	return func(o *fileOptions) {
		o.fs = fsys
	}
}

// CreateFile creates (or truncates) an image file of the given size.
func CreateFile(path string, size int64, optFns ...FileOption) (*File, error) {
	o := applyFileOptions(optFns)

	f, err := o.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := o.fs.Truncate(path, size); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{f: f, path: path, size: size}, nil
}

// OpenFile opens an existing image file. Its size is taken from the file.
func OpenFile(path string, optFns ...FileOption) (*File, error) {
	o := applyFileOptions(optFns)

	f, err := o.fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{f: f, path: path, size: info.Size()}, nil
}

func applyFileOptions(optFns []FileOption) fileOptions {
	o := fileOptions{fs: fs.Default}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Path returns the image path.
func (d *File) Path() string {
	return d.path
}

func (d *File) ReadBlock(ctx context.Context, index uint32, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	if err := checkIO(d.size, index, p); err != nil {
		return err
	}
	n, err := d.f.ReadAt(p, offset(index))
	if err == io.EOF && n == len(p) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("device: read block %d: %w", index, err)
	}
	return nil
}

func (d *File) WriteBlock(ctx context.Context, index uint32, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	if err := checkIO(d.size, index, p); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(p, offset(index)); err != nil {
		return fmt.Errorf("device: write block %d: %w", index, err)
	}
	return nil
}

func (d *File) Size() int64 {
	return d.size
}

// Sync flushes the image to stable storage.
func (d *File) Sync() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	return d.f.Sync()
}

// Close syncs the image, releases the lock and closes the file.
func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	syncErr := d.f.Sync()
	_ = unlockFile(d.f)
	if err := d.f.Close(); err != nil {
		return err
	}
	return syncErr
}
