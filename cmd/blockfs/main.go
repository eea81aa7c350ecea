package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/blockfs"
	"github.com/hupe1980/blockfs/blobstore"
	"github.com/hupe1980/blockfs/codec"
	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/snapshot"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        appName,
		Usage:       "manage a single-partition block file system image",
		Description: "a command line interface to blockfs images stored in a file, a directory, S3 or MinIO",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML config file",
			},
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "image file for the file backend",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "device backend: file, dir, s3 or minio",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{{
			Name:      "mkfs",
			Aliases:   []string{"format"},
			Usage:     "create and format a device",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:  "size",
					Usage: "device size in bytes",
					Value: 25 * blockfs.BlockSize,
				},
			},
			Action: func(ctx *cli.Context) error {
				c, err := loadConfig(ctx)
				if err != nil {
					return err
				}
				size := ctx.Int64("size")
				if size < blockfs.MinCapacity {
					return fmt.Errorf("size %d below minimum %d", size, blockfs.MinCapacity)
				}
				dev, closeDev, err := c.openDevice(ctx.Context, size)
				if err != nil {
					return err
				}
				defer closeDev()

				opts, err := c.fsOptions()
				if err != nil {
					return err
				}
				if err := blockfs.Format(ctx.Context, dev, size, opts...); err != nil {
					return err
				}
				if s, ok := dev.(device.Syncer); ok {
					return s.Sync()
				}
				return nil
			},
		}, {
			Name:      "fsck",
			Aliases:   []string{"check"},
			Usage:     "verify metadata and file checksums",
			ArgsUsage: "[NAME...]",
			Action: withFS(func(fsys *blockfs.FileSystem, ctx *cli.Context) error {
				if err := fsys.CheckMetadata(ctx.Context); err != nil {
					return err
				}
				names := ctx.Args().Slice()
				if len(names) == 0 {
					for _, fi := range fsys.List() {
						names = append(names, fi.Name)
					}
				}

				var failed int
				for _, name := range names {
					if err := fsys.CheckFile(ctx.Context, name); err != nil {
						fmt.Fprintf(ctx.App.Writer, "%s: %v\n", name, err)
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files failed", failed, len(names))
				}
				fmt.Fprintf(ctx.App.Writer, "ok: %d files\n", len(names))
				return nil
			}),
		}, {
			Name:    "ls",
			Aliases: []string{"list"},
			Usage:   "list files",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "json",
					Usage: "print JSON",
				},
			},
			Action: withFS(func(fsys *blockfs.FileSystem, ctx *cli.Context) error {
				files := fsys.List()
				if ctx.Bool("json") {
					return printJSON(ctx.App.Writer, files)
				}
				for _, fi := range files {
					fmt.Fprintf(ctx.App.Writer, "%-32s %5d %04x\n", fi.Name, fi.Size, fi.Checksum)
				}
				return nil
			}),
		}, {
			Name:      "stat",
			Usage:     "print file information as JSON",
			ArgsUsage: "NAME",
			Action: withFS(func(fsys *blockfs.FileSystem, ctx *cli.Context) error {
				name, err := requireArg(ctx)
				if err != nil {
					return err
				}
				fi, err := fsys.Stat(name)
				if err != nil {
					return err
				}
				return printJSON(ctx.App.Writer, fi)
			}),
		}, {
			Name:  "info",
			Usage: "print file system information as JSON",
			Action: withMounted(func(fsys *blockfs.FileSystem, dev device.BlockDevice, ctx *cli.Context) error {
				return printJSON(ctx.App.Writer, infoOutput{Info: fsys.Info(), Cache: cacheStats(dev)})
			}),
		}, {
			Name:      "create",
			Aliases:   []string{"touch"},
			Usage:     "create an empty file",
			ArgsUsage: "NAME",
			Action: withFS(func(fsys *blockfs.FileSystem, ctx *cli.Context) error {
				name, err := requireArg(ctx)
				if err != nil {
					return err
				}
				return fsys.Create(ctx.Context, name)
			}),
		}, {
			Name:      "rm",
			Aliases:   []string{"remove", "delete"},
			Usage:     "remove a file",
			ArgsUsage: "NAME",
			Action: withFS(func(fsys *blockfs.FileSystem, ctx *cli.Context) error {
				name, err := requireArg(ctx)
				if err != nil {
					return err
				}
				return fsys.Remove(ctx.Context, name)
			}),
		}, {
			Name:      "write",
			Usage:     "write FILE (default stdin) into NAME, creating it if needed",
			ArgsUsage: "NAME [FILE]",
			Action: withFS(func(fsys *blockfs.FileSystem, ctx *cli.Context) error {
				name, err := requireArg(ctx)
				if err != nil {
					return err
				}
				data, err := readInput(ctx, ctx.Args().Get(1))
				if err != nil {
					return err
				}

				if _, err := fsys.Stat(name); errors.Is(err, blockfs.ErrNotFound) {
					if err := fsys.Create(ctx.Context, name); err != nil {
						return err
					}
				}
				f, err := fsys.OpenFile(ctx.Context, name)
				if err != nil {
					return err
				}
				if _, err := f.Write(data); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			}),
		}, {
			Name:      "cat",
			Usage:     "print the content of NAME",
			ArgsUsage: "NAME",
			Action: withFS(func(fsys *blockfs.FileSystem, ctx *cli.Context) error {
				name, err := requireArg(ctx)
				if err != nil {
					return err
				}
				f, err := fsys.OpenFile(ctx.Context, name)
				if err != nil {
					return err
				}
				if _, err := io.Copy(ctx.App.Writer, f); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			}),
		}, {
			Name:      "export",
			Usage:     "write a compressed snapshot of the device to OUT (- for stdout)",
			ArgsUsage: "OUT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "compression",
					Usage: "none, lz4 or zstd",
					Value: string(snapshot.CompressionZSTD),
				},
				storeFlag,
			},
			Action: func(ctx *cli.Context) error {
				out, err := requireArg(ctx)
				if err != nil {
					return err
				}
				comp, err := snapshot.ParseCompression(ctx.String("compression"))
				if err != nil {
					return err
				}
				c, err := loadConfig(ctx)
				if err != nil {
					return err
				}
				dev, closeDev, err := c.openDevice(ctx.Context, 0)
				if err != nil {
					return err
				}
				defer closeDev()

				w, commit, err := snapshotWriter(ctx, c, out)
				if err != nil {
					return err
				}
				if _, err := snapshot.Export(ctx.Context, dev, w, snapshot.WithCompression(comp)); err != nil {
					_ = commit(err)
					return err
				}
				return commit(nil)
			},
		}, {
			Name:      "import",
			Usage:     "restore a snapshot from IN (- for stdin) onto the device",
			ArgsUsage: "IN",
			Flags:     []cli.Flag{storeFlag},
			Action: func(ctx *cli.Context) error {
				in, err := requireArg(ctx)
				if err != nil {
					return err
				}
				c, err := loadConfig(ctx)
				if err != nil {
					return err
				}

				r, closeIn, err := snapshotReader(ctx, c, in)
				if err != nil {
					return err
				}
				defer closeIn()
				br := bufio.NewReader(r)

				// The header is parsed twice: once here to size a new device
				// and again by Import.
				size, err := importSize(c, br)
				if err != nil {
					return err
				}
				dev, closeDev, err := c.openDevice(ctx.Context, size)
				if err != nil {
					return err
				}
				defer closeDev()

				if _, err := snapshot.Import(ctx.Context, br, dev); err != nil {
					return err
				}
				if s, ok := dev.(device.Syncer); ok {
					return s.Sync()
				}
				return nil
			},
		}, {
			Name:  "snapshots",
			Usage: "list snapshots kept in the object store",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "delete",
					Usage: "delete the named snapshot instead of listing",
				},
			},
			Action: func(ctx *cli.Context) error {
				c, err := loadConfig(ctx)
				if err != nil {
					return err
				}
				store, err := c.blobStore(ctx.Context)
				if err != nil {
					return err
				}

				if name := ctx.String("delete"); name != "" {
					return store.Delete(ctx.Context, snapshotPrefix+name)
				}
				names, err := store.List(ctx.Context, snapshotPrefix)
				if err != nil {
					return err
				}
				for _, name := range names {
					if strings.HasSuffix(name, partialSuffix) {
						continue
					}
					fmt.Fprintln(ctx.App.Writer, strings.TrimPrefix(name, snapshotPrefix))
				}
				return nil
			},
		}},
	}
}

// snapshotPrefix names snapshot objects next to the block objects of an
// object store image.
const snapshotPrefix = "snapshot-"

// partialSuffix marks an export that has not been published yet.
const partialSuffix = ".partial"

var storeFlag = &cli.BoolFlag{
	Name:  "store",
	Usage: "keep the snapshot in the object store of the dir, s3 or minio backend",
}

// snapshotWriter opens the export destination. commit finishes the write;
// it is passed the export error and discards the output when that is
// non-nil.
func snapshotWriter(ctx *cli.Context, c *Config, out string) (io.Writer, func(error) error, error) {
	if ctx.Bool("store") {
		store, err := c.blobStore(ctx.Context)
		if err != nil {
			return nil, nil, err
		}
		return storeSnapshotWriter(ctx.Context, store, out)
	}
	if out == "-" {
		return ctx.App.Writer, func(error) error { return nil }, nil
	}
	return fileSnapshotWriter(out)
}

// storeSnapshotWriter uploads to a partial name first, so a failed export
// never replaces an existing snapshot of the same name.
func storeSnapshotWriter(ctx context.Context, store blobstore.BlobStore, name string) (io.Writer, func(error) error, error) {
	final := snapshotPrefix + name
	tmp := final + partialSuffix
	wb, err := store.Create(ctx, tmp)
	if err != nil {
		return nil, nil, err
	}
	return wb, func(err error) error {
		ctx := context.WithoutCancel(ctx)
		if err != nil {
			_ = wb.Close()
			return store.Delete(ctx, tmp)
		}
		if err := publishBlob(ctx, store, wb, tmp, final); err != nil {
			_ = store.Delete(ctx, tmp)
			return err
		}
		return nil
	}, nil
}

// publishBlob finishes the upload of tmp and moves it to final.
func publishBlob(ctx context.Context, store blobstore.BlobStore, wb blobstore.WritableBlob, tmp, final string) error {
	if err := wb.Close(); err != nil {
		return err
	}
	data, err := store.Get(ctx, tmp)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, final, data); err != nil {
		return err
	}
	return store.Delete(ctx, tmp)
}

// fileSnapshotWriter writes next to out and renames over it on success.
func fileSnapshotWriter(out string) (io.Writer, func(error) error, error) {
	f, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".*"+partialSuffix)
	if err != nil {
		return nil, nil, err
	}
	return f, func(err error) error {
		if err != nil {
			_ = f.Close()
			return os.Remove(f.Name())
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return err
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(f.Name())
			return err
		}
		return os.Rename(f.Name(), out)
	}, nil
}

func snapshotReader(ctx *cli.Context, c *Config, in string) (io.Reader, func() error, error) {
	noop := func() error { return nil }
	if ctx.Bool("store") {
		store, err := c.blobStore(ctx.Context)
		if err != nil {
			return nil, nil, err
		}
		data, err := store.Get(ctx.Context, snapshotPrefix+in)
		if err != nil {
			return nil, nil, err
		}
		return bytes.NewReader(data), noop, nil
	}

	if in == "-" {
		return ctx.App.Reader, noop, nil
	}
	f, err := os.Open(in)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// importSize returns the device size needed to restore the snapshot in br
// without consuming it. Existing file images keep their size.
func importSize(c *Config, br *bufio.Reader) (int64, error) {
	if c.Backend == backendFile {
		if _, err := os.Stat(c.Image); err == nil {
			return 0, nil
		}
	}
	peek, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, err
	}
	h, err := snapshot.ReadHeader(bytes.NewReader(peek))
	if err != nil {
		return 0, err
	}
	return int64(h.Blocks) * int64(h.BlockSize), nil
}

func loadConfig(ctx *cli.Context) (*Config, error) {
	c, err := LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("image") {
		c.Image = ctx.String("image")
	}
	if ctx.IsSet("backend") {
		c.Backend = ctx.String("backend")
	}
	if ctx.IsSet("log-level") {
		c.LogLevel = ctx.String("log-level")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) fsOptions() ([]blockfs.Option, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}

	var logger *blockfs.Logger
	if c.LogFormat == "json" {
		logger = blockfs.NewJSONLogger(level)
	} else {
		logger = blockfs.NewTextLogger(level)
	}

	opts := []blockfs.Option{blockfs.WithLogger(logger.WithDevice(c.deviceName()))}
	if c.DeferredFlush {
		opts = append(opts, blockfs.WithDeferredFlush())
	}
	return opts, nil
}

func (c *Config) deviceName() string {
	switch c.Backend {
	case backendDir:
		return "dir://" + c.Dir
	case backendS3:
		return "s3://" + c.S3.Bucket + "/" + c.S3.Prefix
	case backendMinIO:
		return "minio://" + c.MinIO.Endpoint + "/" + c.MinIO.Bucket + "/" + c.MinIO.Prefix
	}
	return c.Image
}

// withFS mounts the configured device around fn and unmounts it afterwards.
func withFS(fn func(*blockfs.FileSystem, *cli.Context) error) cli.ActionFunc {
	return withMounted(func(fsys *blockfs.FileSystem, _ device.BlockDevice, ctx *cli.Context) error {
		return fn(fsys, ctx)
	})
}

// withMounted is withFS for actions that also inspect the device stack.
func withMounted(fn func(*blockfs.FileSystem, device.BlockDevice, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		opts, err := c.fsOptions()
		if err != nil {
			return err
		}
		dev, closeDev, err := c.openDevice(ctx.Context, 0)
		if err != nil {
			return err
		}
		defer closeDev()

		fsys, err := blockfs.Mount(ctx.Context, dev, opts...)
		if err != nil {
			return err
		}
		if err := fn(fsys, dev, ctx); err != nil {
			_ = fsys.Unmount(context.WithoutCancel(ctx.Context))
			return err
		}
		return fsys.Unmount(ctx.Context)
	}
}

type cacheInfo struct {
	Hits   int64
	Misses int64
}

type infoOutput struct {
	blockfs.Info
	Cache *cacheInfo `json:",omitempty"`
}

// cacheStats reports the counters of the first block cache in the stack.
func cacheStats(dev device.BlockDevice) *cacheInfo {
	for dev != nil {
		if c, ok := dev.(*device.Cached); ok {
			hits, misses := c.Stats()
			return &cacheInfo{Hits: hits, Misses: misses}
		}
		u, ok := dev.(interface{ Unwrap() device.BlockDevice })
		if !ok {
			return nil
		}
		dev = u.Unwrap()
	}
	return nil
}

func requireArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() < 1 {
		return "", fmt.Errorf("%s: missing argument %s", ctx.Command.Name, ctx.Command.ArgsUsage)
	}
	return ctx.Args().First(), nil
}

// readInput reads at most one block from path, or stdin when path is
// empty or "-".
func readInput(ctx *cli.Context, path string) ([]byte, error) {
	var r io.Reader = ctx.App.Reader
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, blockfs.BlockSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > blockfs.BlockSize {
		return nil, fmt.Errorf("input exceeds %d bytes", blockfs.BlockSize)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := codec.GoJSON{}.MarshalIndent(v)
	if err != nil {
		return fmt.Errorf("marshaling to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
