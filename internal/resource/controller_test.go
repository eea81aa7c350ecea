package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_InFlight(t *testing.T) {
	c := NewController(Config{MaxInFlight: 2})

	require.NoError(t, c.Begin(t.Context()))
	require.NoError(t, c.Begin(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Begin(ctx), context.DeadlineExceeded)

	c.End()
	require.NoError(t, c.Begin(t.Context()))
	assert.Equal(t, int64(3), c.Requests())
}

func TestController_Unlimited(t *testing.T) {
	c := NewController(Config{})

	for range 10 {
		require.NoError(t, c.Begin(t.Context()))
	}
	require.NoError(t, c.AcquireIO(t.Context(), 1<<30))
	assert.Equal(t, int64(1<<30), c.IOBytes())
}

func TestController_IOBurstRaised(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 4096, IOBurstBytes: 10})

	// One second of budget is available at once; a burst of 10 bytes would
	// need about a second to admit 4096.
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, c.AcquireIO(ctx, 4096))

	// The bucket is empty now.
	assert.Error(t, c.AcquireIO(ctx, 4096))
}

func TestController_AcquireIOHonoursContext(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1024})
	require.NoError(t, c.AcquireIO(t.Context(), 1024))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Error(t, c.AcquireIO(ctx, 1024))
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireIO(t.Context(), 100))
	assert.NoError(t, c.Begin(t.Context()))
	c.End()
	assert.Zero(t, c.IOBytes())
	assert.Zero(t, c.Requests())
}

func TestRateLimitedWriterReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(t.Context(), &buf, c)
	n, err := w.Write([]byte("block data"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	r := NewRateLimitedReader(t.Context(), &buf, c)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "block data", string(data))
	assert.Equal(t, int64(20), c.IOBytes())
}

func TestRateLimitedReader_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := NewRateLimitedReader(ctx, bytes.NewReader([]byte("x")), nil)
	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
