package blockfs

import (
	"context"
	"io"
	"os"
)

// File adapts a descriptor to io.Reader, io.Writer, io.Seeker and io.Closer.
//
// The context passed to OpenFile is used for every call on the handle. After
// a successful Close every method fails with os.ErrClosed, even when the
// descriptor number has been handed to another file.
type File struct {
	ctx  context.Context
	fs   *FileSystem
	fd   FD
	name string
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// OpenFile opens name and wraps the descriptor in a File.
func (f *FileSystem) OpenFile(ctx context.Context, name string) (*File, error) {
	fd, err := f.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &File{ctx: ctx, fs: f, fd: fd, name: name}, nil
}

// Name returns the file name.
func (h *File) Name() string { return h.name }

// FD returns the underlying descriptor, or -1 once the handle is closed.
func (h *File) FD() FD { return h.fd }

func (h *File) closedError(op string) error {
	return &OpError{Op: op, Name: h.name, FD: noFD, Err: os.ErrClosed}
}

// Read implements io.Reader. It returns io.EOF at the end of the data.
func (h *File) Read(p []byte) (int, error) {
	if h.fd == noFD {
		return 0, h.closedError("read")
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := h.fs.Read(h.ctx, h.fd, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. It returns io.ErrShortWrite when p does not
// fit in the remainder of the block.
func (h *File) Write(p []byte) (int, error) {
	if h.fd == noFD {
		return 0, h.closedError("write")
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := h.fs.Write(h.ctx, h.fd, p)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek implements io.Seeker.
func (h *File) Seek(offset int64, whence int) (int64, error) {
	if h.fd == noFD {
		return 0, h.closedError("seek")
	}
	return h.fs.Seek(h.ctx, h.fd, offset, whence)
}

// Stat returns the current file information.
func (h *File) Stat() (FileInfo, error) {
	return h.fs.Stat(h.name)
}

// Close refreshes the checksum and releases the descriptor. A failed Close
// leaves the handle open so it can be retried.
func (h *File) Close() error {
	if h.fd == noFD {
		return h.closedError("close")
	}
	if err := h.fs.Close(h.ctx, h.fd); err != nil {
		return err
	}
	h.fd = noFD
	return nil
}
