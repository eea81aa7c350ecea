package snapshot

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/hupe1980/blockfs/device"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrame_ZSTDBoundedByFrameSize(t *testing.T) {
	const frameSize = blocksPerFrame * device.BlockSize

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	bomb := enc.EncodeAll(make([]byte, 64*frameSize), nil)
	require.NoError(t, enc.Close())

	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(bomb))
	binary.LittleEndian.PutUint32(frame[0:], frameSize)
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(bomb)))
	frame = append(frame, bomb...)

	cs, err := newCodecs(CompressionZSTD)
	require.NoError(t, err)
	defer cs.Close()

	_, err = cs.readFrame(bytes.NewReader(frame), frameSize)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, err, zstd.ErrDecoderSizeExceeded)
}

func TestReadFrame_ZSTDRoundTrip(t *testing.T) {
	cs, err := newCodecs(CompressionZSTD)
	require.NoError(t, err)
	defer cs.Close()

	data := bytes.Repeat([]byte("blockfs "), blocksPerFrame*device.BlockSize/8)
	frame, err := cs.encodeFrame(data)
	require.NoError(t, err)
	assert.NotZero(t, binary.LittleEndian.Uint32(frame[4:]), "compressible frame is stored compressed")

	got, err := cs.readFrame(bytes.NewReader(frame), len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
