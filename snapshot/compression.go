package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/blockfs/device"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm used for the snapshot body.
type Compression string

const (
	// CompressionNone stores blocks as is.
	CompressionNone Compression = "none"
	// CompressionLZ4 favours speed.
	CompressionLZ4 Compression = "lz4"
	// CompressionZSTD favours ratio.
	CompressionZSTD Compression = "zstd"
)

// ParseCompression maps a name to a Compression. The empty string selects
// zstd.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "":
		return CompressionZSTD, nil
	case CompressionNone, CompressionLZ4, CompressionZSTD:
		return Compression(s), nil
	}
	return "", fmt.Errorf("snapshot: unknown compression %q", s)
}

// frameHeaderSize is [uncompressed uint32][compressed uint32]. A compressed
// size of 0 means the frame is stored raw; an uncompressed size of 0 ends
// the body.
const frameHeaderSize = 8

// codecs holds reusable compressors for one export or import.
type codecs struct {
	kind Compression
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCodecs(kind Compression) (*codecs, error) {
	c := &codecs{kind: kind}
	if kind != CompressionZSTD {
		return c, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(blocksPerFrame*device.BlockSize)),
	)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	c.enc, c.dec = enc, dec
	return c, nil
}

func (c *codecs) Close() {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}

// encodeFrame compresses data into a frame. Frames that do not shrink by
// at least 10% are stored raw.
func (c *codecs) encodeFrame(data []byte) ([]byte, error) {
	var compressed []byte

	switch c.kind {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n] // n == 0: incompressible
	case CompressionZSTD:
		compressed = c.enc.EncodeAll(data, nil)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		frame := make([]byte, frameHeaderSize+len(data))
		binary.LittleEndian.PutUint32(frame[0:], uint32(len(data)))
		copy(frame[frameHeaderSize:], data)
		return frame, nil
	}

	frame := make([]byte, frameHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(frame[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(compressed)))
	copy(frame[frameHeaderSize:], compressed)
	return frame, nil
}

// readFrame reads the next frame from r. It returns nil data at the end
// marker. maxSize bounds the uncompressed size of a frame.
func (c *codecs) readFrame(r io.Reader, maxSize int) ([]byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: frame header: %w", ErrCorrupt, err)
	}
	size := int(binary.LittleEndian.Uint32(hdr[0:]))
	csize := int(binary.LittleEndian.Uint32(hdr[4:]))

	if size == 0 {
		return nil, nil
	}
	if size > maxSize || csize > lz4.CompressBlockBound(maxSize)+frameHeaderSize {
		return nil, fmt.Errorf("%w: frame of %d/%d bytes", ErrCorrupt, size, csize)
	}

	if csize == 0 {
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("%w: frame body: %w", ErrCorrupt, err)
		}
		return data, nil
	}

	src := make([]byte, csize)
	if _, err := io.ReadFull(r, src); err != nil {
		return nil, fmt.Errorf("%w: frame body: %w", ErrCorrupt, err)
	}

	var (
		data []byte
		err  error
	)
	switch c.kind {
	case CompressionLZ4:
		data = make([]byte, size)
		var n int
		n, err = lz4.UncompressBlock(src, data)
		data = data[:max(n, 0)]
	case CompressionZSTD:
		data, err = c.dec.DecodeAll(src, make([]byte, 0, size))
	default:
		return nil, fmt.Errorf("%w: compressed frame in uncompressed stream", ErrCorrupt)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: frame decoded to %d bytes, want %d", ErrCorrupt, len(data), size)
	}
	return data, nil
}
