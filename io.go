package blockfs

import (
	"context"
	"fmt"
	"io"
)

// Read copies up to len(p) bytes from the cursor into p and advances the
// cursor. The block is read fresh from the device on every call. Read
// returns 0 without error once the cursor reaches the file size.
func (f *FileSystem) Read(ctx context.Context, fd FD, p []byte) (int, error) {
	var n int
	err := f.do(ctx, "read", "", fd, func() error {
		var err error
		n, err = f.read(ctx, fd, p)
		return err
	})
	f.metrics.RecordIO("read", n)
	f.logger.LogIO(ctx, "read", fd, len(p), n)
	return n, err
}

func (f *FileSystem) read(ctx context.Context, fd FD, p []byte) (int, error) {
	d, err := f.descriptor(fd)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", ErrInvalidArgument)
	}

	n := min(len(p), int(f.meta.Inodes[d.inode].Size)-d.offset)
	if n <= 0 {
		return 0, nil
	}

	block := make([]byte, BlockSize)
	if err := f.dev.ReadBlock(ctx, f.layout.DataBlock(d.inode), block); err != nil {
		return 0, err
	}
	copy(p[:n], block[d.offset:])
	d.offset += n
	return n, nil
}

// Write copies p into the file at the cursor, clamped to the end of the
// block, and advances the cursor. Bytes beyond the block are dropped; 0 is
// returned when the cursor is already at the block boundary. The data
// checksum is refreshed by Close, not here.
func (f *FileSystem) Write(ctx context.Context, fd FD, p []byte) (int, error) {
	var n int
	err := f.do(ctx, "write", "", fd, func() error {
		var err error
		n, err = f.write(ctx, fd, p)
		return err
	})
	f.metrics.RecordIO("write", n)
	f.logger.LogIO(ctx, "write", fd, len(p), n)
	return n, err
}

func (f *FileSystem) write(ctx context.Context, fd FD, p []byte) (int, error) {
	d, err := f.descriptor(fd)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", ErrInvalidArgument)
	}

	n := min(len(p), BlockSize-d.offset)
	if n <= 0 {
		return 0, nil
	}

	index := f.layout.DataBlock(d.inode)
	block := make([]byte, BlockSize)
	if err := f.dev.ReadBlock(ctx, index, block); err != nil {
		return 0, err
	}
	copy(block[d.offset:], p[:n])
	if err := f.dev.WriteBlock(ctx, index, block); err != nil {
		return 0, err
	}

	d.offset += n
	inode := &f.meta.Inodes[d.inode]
	if d.offset > int(inode.Size) {
		inode.Size = uint16(d.offset)
	}
	return n, nil
}

// Seek moves the cursor and returns the new offset. whence is one of
// io.SeekStart, io.SeekCurrent or io.SeekEnd. The result must lie within
// [0, size]; seeking in an empty file is an error.
func (f *FileSystem) Seek(ctx context.Context, fd FD, offset int64, whence int) (int64, error) {
	var pos int64
	err := f.do(ctx, "seek", "", fd, func() error {
		var err error
		pos, err = f.seek(fd, offset, whence)
		return err
	})
	return pos, err
}

func (f *FileSystem) seek(fd FD, offset int64, whence int) (int64, error) {
	d, err := f.descriptor(fd)
	if err != nil {
		return 0, err
	}
	size := int64(f.meta.Inodes[d.inode].Size)
	if size == 0 {
		return 0, fmt.Errorf("%w: file is empty", ErrInvalidArgument)
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(d.offset)
	case io.SeekEnd:
		base = size
	default:
		return 0, fmt.Errorf("%w: whence %d", ErrInvalidArgument, whence)
	}

	pos := base + offset
	if pos < 0 || pos > size {
		return 0, fmt.Errorf("%w: offset %d outside [0, %d]", ErrInvalidArgument, pos, size)
	}
	d.offset = int(pos)
	return pos, nil
}
