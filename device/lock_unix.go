//go:build unix

package device

import (
	"errors"

	"github.com/hupe1980/blockfs/internal/fs"
	"golang.org/x/sys/unix"
)

func lockFile(f fs.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrLocked
	}
	return err
}

func unlockFile(f fs.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
