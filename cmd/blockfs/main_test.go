package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/blockfs"
	"github.com/hupe1980/blockfs/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliRunner struct {
	t     *testing.T
	image string
}

func newRunner(t *testing.T) *cliRunner {
	t.Helper()
	t.Setenv("BLOCKFS_CONFIG_FILE", filepath.Join(t.TempDir(), "none.yaml"))
	return &cliRunner{t: t, image: filepath.Join(t.TempDir(), "disk.img")}
}

func (r *cliRunner) run(stdin string, args ...string) (string, error) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)

	argv := append([]string{appName, "--image", r.image}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func (r *cliRunner) must(stdin string, args ...string) string {
	r.t.Helper()
	out, err := r.run(stdin, args...)
	require.NoError(r.t, err, "blockfs %s", strings.Join(args, " "))
	return out
}

func TestCLI_FileLifecycle(t *testing.T) {
	r := newRunner(t)

	r.must("", "mkfs", "--size", "30720")
	r.must("", "create", "empty.txt")
	r.must("hello blockfs", "write", "greeting.txt")

	assert.Equal(t, "hello blockfs", r.must("", "cat", "greeting.txt"))
	assert.Equal(t, "", r.must("", "cat", "empty.txt"))

	ls := r.must("", "ls")
	assert.Contains(t, ls, "empty.txt")
	assert.Contains(t, ls, "greeting.txt")

	var files []blockfs.FileInfo
	require.NoError(t, json.Unmarshal([]byte(r.must("", "ls", "--json")), &files))
	require.Len(t, files, 2)

	var fi blockfs.FileInfo
	require.NoError(t, json.Unmarshal([]byte(r.must("", "stat", "greeting.txt")), &fi))
	assert.Equal(t, 13, fi.Size)

	var info infoOutput
	require.NoError(t, json.Unmarshal([]byte(r.must("", "info")), &info))
	assert.Equal(t, 14, info.InodeCount)
	assert.Equal(t, 2, info.UsedInodes)
	assert.Nil(t, info.Cache, "no cache configured")

	assert.Equal(t, "ok: 2 files\n", r.must("", "fsck"))

	r.must("", "rm", "empty.txt")
	_, err := r.run("", "cat", "empty.txt")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)
}

func TestCLI_WriteOverwritesFromStart(t *testing.T) {
	r := newRunner(t)
	r.must("", "mkfs")

	r.must("aaaaaaaa", "write", "f")
	r.must("bb", "write", "f")
	assert.Equal(t, "bbaaaaaa", r.must("", "cat", "f"))
}

func TestCLI_Errors(t *testing.T) {
	r := newRunner(t)

	_, err := r.run("", "ls")
	require.Error(t, err, "unformatted image must not mount")

	_, err = r.run("", "mkfs", "--size", "100")
	require.Error(t, err)

	r.must("", "mkfs")

	_, err = r.run("", "create")
	require.Error(t, err)

	_, err = r.run(strings.Repeat("x", blockfs.BlockSize+1), "write", "big")
	require.Error(t, err)

	_, err = r.run("", "create", strings.Repeat("n", blockfs.NameSize+1))
	assert.ErrorIs(t, err, blockfs.ErrNameTooLong)

	_, err = r.run("", "--backend", "nfs", "ls")
	require.Error(t, err)
}

func TestCLI_ExportImport(t *testing.T) {
	r := newRunner(t)
	r.must("", "mkfs", "--size", "67584")
	r.must("payload", "write", "data.bin")

	snap := filepath.Join(t.TempDir(), "disk.bfs")
	for _, comp := range []string{"none", "lz4", "zstd"} {
		t.Run(comp, func(t *testing.T) {
			exporter := &cliRunner{t: t, image: r.image}
			exporter.must("", "export", "--compression", comp, snap)

			restored := &cliRunner{t: t, image: filepath.Join(t.TempDir(), "restored.img")}
			restored.must("", "import", snap)
			assert.Equal(t, "payload", restored.must("", "cat", "data.bin"))
			assert.Equal(t, "ok: 1 files\n", restored.must("", "fsck"))
		})
	}
}

func TestCLI_DirBackend(t *testing.T) {
	r := newRunner(t)
	dir := t.TempDir()
	t.Setenv("BLOCKFS_DIR", dir)
	t.Setenv("BLOCKFS_CACHE_BLOCKS", "4")

	r.must("", "--backend", "dir", "mkfs", "--size", "20480")
	r.must("stored as objects", "--backend", "dir", "write", "obj.txt")
	assert.Equal(t, "stored as objects", r.must("", "--backend", "dir", "cat", "obj.txt"))
	assert.Equal(t, "ok: 1 files\n", r.must("", "--backend", "dir", "fsck"))

	var info infoOutput
	require.NoError(t, json.Unmarshal([]byte(r.must("", "--backend", "dir", "info")), &info))
	assert.Equal(t, 9, info.InodeCount)
	require.NotNil(t, info.Cache)
	assert.Positive(t, info.Cache.Hits+info.Cache.Misses)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestCLI_SnapshotsInObjectStore(t *testing.T) {
	r := newRunner(t)
	t.Setenv("BLOCKFS_DIR", t.TempDir())
	dir := func(args ...string) []string { return append([]string{"--backend", "dir"}, args...) }

	r.must("", dir("mkfs")...)
	r.must("v1", dir("write", "state")...)
	r.must("", dir("export", "--store", "--compression", "lz4", "monday")...)
	r.must("v2", dir("write", "state")...)

	assert.Equal(t, "monday\n", r.must("", dir("snapshots")...))

	r.must("", dir("import", "--store", "monday")...)
	assert.Equal(t, "v1", r.must("", dir("cat", "state")...))

	_, err := r.run("", dir("import", "--store", "tuesday")...)
	require.Error(t, err)

	r.must("", dir("snapshots", "--delete", "monday")...)
	assert.Equal(t, "", r.must("", dir("snapshots")...))

	_, err = r.run("", "export", "--store", "x")
	require.Error(t, err, "file backend has no object store")
}

func TestStoreSnapshotWriter_FailedExportKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, snapshotPrefix+"monday", []byte("good")))

	w, commit, err := storeSnapshotWriter(ctx, store, "monday")
	require.NoError(t, err)
	_, err = w.Write([]byte("trunc"))
	require.NoError(t, err)
	require.NoError(t, commit(errors.New("export failed")))

	data, err := store.Get(ctx, snapshotPrefix+"monday")
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))

	names, err := store.List(ctx, snapshotPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{snapshotPrefix + "monday"}, names)

	w, commit, err = storeSnapshotWriter(ctx, store, "monday")
	require.NoError(t, err)
	_, err = w.Write([]byte("better"))
	require.NoError(t, err)
	require.NoError(t, commit(nil))

	data, err = store.Get(ctx, snapshotPrefix+"monday")
	require.NoError(t, err)
	assert.Equal(t, "better", string(data))

	names, err = store.List(ctx, snapshotPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{snapshotPrefix + "monday"}, names)
}

func TestFileSnapshotWriter_FailedExportKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "disk.snap")
	require.NoError(t, os.WriteFile(out, []byte("good"), 0o644))

	w, commit, err := fileSnapshotWriter(out)
	require.NoError(t, err)
	_, err = w.Write([]byte("trunc"))
	require.NoError(t, err)
	require.NoError(t, commit(errors.New("export failed")))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "partial output removed")

	w, commit, err = fileSnapshotWriter(out)
	require.NoError(t, err)
	_, err = w.Write([]byte("better"))
	require.NoError(t, err)
	require.NoError(t, commit(nil))

	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "better", string(data))
}
