//go:build !unix

package device

import "github.com/hupe1980/blockfs/internal/fs"

func lockFile(fs.File) error   { return nil }
func unlockFile(fs.File) error { return nil }
