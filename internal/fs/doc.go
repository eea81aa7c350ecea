// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file addressed by offset (ReadAt/WriteAt) with sync
//   - [FileSystem]: filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// Device images and local blob stores go through fs.Default in production.
// Tests inject [FaultyFS] to turn reads, writes or syncs of a matching file
// into errors at any point:
//
//	ffs := fs.NewFaultyFS(nil)
//	dev, _ := device.OpenFile(path, device.WithFileSystem(ffs))
//	ffs.AddRule("disk.img", fs.Fault{FailReads: true, FailAfterBytes: -1})
//
// Operations take no context.Context: local file IO is not interruptible at
// the syscall level. Callers check the context before issuing IO.
package fs
