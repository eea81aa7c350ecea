package blockfs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hupe1980/blockfs/internal/integrity"
	"github.com/hupe1980/blockfs/internal/layout"
)

var (
	// ErrCapacityTooSmall is returned when the device or requested partition
	// cannot hold one metadata block and one data block.
	ErrCapacityTooSmall = errors.New("capacity too small")
	// ErrNameTooLong is returned for names longer than NameSize bytes.
	ErrNameTooLong = errors.New("file name too long")
	// ErrAlreadyExists is returned when creating a name that is taken.
	ErrAlreadyExists = errors.New("file already exists")
	// ErrNotFound is returned when no file has the given name.
	ErrNotFound = errors.New("file not found")
	// ErrAlreadyOpen is returned when opening a file that has a descriptor.
	ErrAlreadyOpen = errors.New("file already open")
	// ErrNoFreeInode is returned when every inode slot is occupied.
	ErrNoFreeInode = errors.New("no free inode")
	// ErrNoFreeDescriptor is returned when every descriptor is in use.
	ErrNoFreeDescriptor = errors.New("no free descriptor")
	// ErrInvalidDescriptor is returned for out of range or unused descriptors.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	// ErrInvalidArgument is returned for bad names, counts, offsets or whence values.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMetadataCorrupted is returned when the stored metadata checksum does not match.
	ErrMetadataCorrupted = errors.New("metadata corrupted")
	// ErrFileCorrupted is returned when a data block does not match its checksum.
	ErrFileCorrupted = errors.New("file corrupted")
	// ErrFileStillOpen is returned when an operation needs the file (or every
	// file) to be closed.
	ErrFileStillOpen = errors.New("file still open")
	// ErrIO wraps failures of the underlying block device.
	ErrIO = errors.New("i/o error")
	// ErrNotMounted is returned by every FileSystem method after Unmount.
	ErrNotMounted = errors.New("file system not mounted")
)

var publicErrors = []error{
	ErrCapacityTooSmall,
	ErrNameTooLong,
	ErrAlreadyExists,
	ErrNotFound,
	ErrAlreadyOpen,
	ErrNoFreeInode,
	ErrNoFreeDescriptor,
	ErrInvalidDescriptor,
	ErrInvalidArgument,
	ErrMetadataCorrupted,
	ErrFileCorrupted,
	ErrFileStillOpen,
	ErrIO,
	ErrNotMounted,
}

// OpError records a failed operation together with the file name or
// descriptor it was applied to.
//
// The cause can be inspected with errors.Is / errors.As.
type OpError struct {
	Op   string
	Name string
	FD   FD
	Err  error
}

func (e *OpError) Error() string {
	s := "blockfs: " + e.Op
	switch {
	case e.Name != "":
		s += " " + strconv.Quote(e.Name)
	case e.FD >= 0:
		s += " fd=" + strconv.Itoa(int(e.FD))
	}
	return s + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// noFD marks operations that do not act on a descriptor.
const noFD FD = -1

func opError(op, name string, fd FD, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Name: name, FD: fd, Err: translateError(err)}
}

// translateError maps errors of the internal packages onto the public
// sentinels. Anything that is not already classified came from the device
// and is reported as ErrIO.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	for _, pub := range publicErrors {
		if errors.Is(err, pub) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case errors.Is(err, layout.ErrCapacityTooSmall):
		return fmt.Errorf("%w: %w", ErrCapacityTooSmall, err)
	case errors.Is(err, integrity.ErrMetadataCorrupted),
		errors.Is(err, layout.ErrCorrupt),
		errors.Is(err, layout.ErrShortMetadata):
		return fmt.Errorf("%w: %w", ErrMetadataCorrupted, err)
	case errors.Is(err, integrity.ErrFileCorrupted):
		return fmt.Errorf("%w: %w", ErrFileCorrupted, err)
	case errors.Is(err, integrity.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}
