package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blockfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("BLOCKFS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), *c)
	require.NoError(t, c.Validate())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
image: disk.img
logLevel: debug
throttle:
  bytesPerSec: 4096
s3:
  bucket: from-file
  prefix: images/a
`)
	t.Setenv("BLOCKFS_S3_BUCKET", "from-env")
	t.Setenv("BLOCKFS_DEFERRED_FLUSH", "true")
	t.Setenv("BLOCKFS_CACHE_BLOCKS", "32")

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "disk.img", c.Image)
	assert.Equal(t, backendFile, c.Backend)
	assert.Equal(t, int64(4096), c.Throttle.BytesPerSec)
	assert.Equal(t, "from-env", c.S3.Bucket)
	assert.Equal(t, "images/a", c.S3.Prefix)
	assert.True(t, c.DeferredFlush)
	assert.Equal(t, 32, c.CacheBlocks)

	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_ConfigFileFromEnv(t *testing.T) {
	t.Setenv("BLOCKFS_CONFIG_FILE", writeConfig(t, "backend: minio\n"))

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, backendMinIO, c.Backend)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "imagee: x\n"))
		require.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("BLOCKFS_THROTTLE_BYTES_PER_SEC", "fast")
		_, err := LoadConfig(writeConfig(t, "image: x\n"))
		require.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"no image", func(c *Config) { c.Image = "" }, "BLOCKFS_IMAGE"},
		{"dir without path", func(c *Config) { c.Backend = backendDir }, "BLOCKFS_DIR"},
		{"dir", func(c *Config) { c.Backend = backendDir; c.Dir = "/tmp/img" }, ""},
		{"s3 without bucket", func(c *Config) { c.Backend = backendS3 }, "BLOCKFS_S3_BUCKET"},
		{"s3", func(c *Config) { c.Backend = backendS3; c.S3.Bucket = "b" }, ""},
		{"minio without endpoint", func(c *Config) { c.Backend = backendMinIO }, "BLOCKFS_MINIO_ENDPOINT"},
		{"minio without bucket", func(c *Config) { c.Backend = backendMinIO; c.MinIO.Endpoint = "localhost:9000" }, "BLOCKFS_MINIO_BUCKET"},
		{"unknown backend", func(c *Config) { c.Backend = "nfs" }, "unknown backend"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DeviceName(t *testing.T) {
	c := defaultConfig()
	assert.Equal(t, "blockfs.img", c.deviceName())

	c.Backend = backendS3
	c.S3.Bucket, c.S3.Prefix = "b", "p"
	assert.Equal(t, "s3://b/p", c.deviceName())
}
