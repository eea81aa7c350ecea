package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/blockfs/codec"
	"github.com/hupe1980/blockfs/device"
	"github.com/hupe1980/blockfs/internal/hash"
	"github.com/hupe1980/blockfs/internal/resource"
	"golang.org/x/sync/errgroup"
)

const (
	// Magic opens every snapshot stream.
	Magic = "BFSSNAP1"
	// Version is the current stream version.
	Version = 1

	blocksPerFrame = 16
	maxHeaderSize  = 64 << 10
	maxCodecName   = 64
)

var (
	// ErrCorrupt is returned for streams that fail to parse or whose
	// checksum does not match.
	ErrCorrupt = errors.New("snapshot: corrupt stream")
	// ErrIncompatible is returned when a valid snapshot cannot be restored
	// onto the target device.
	ErrIncompatible = errors.New("snapshot: incompatible image")
)

// Header describes the image carried by a snapshot.
type Header struct {
	Version     int         `json:"version"`
	BlockSize   int         `json:"block_size"`
	Blocks      uint32      `json:"blocks"`
	Compression Compression `json:"compression"`
}

type options struct {
	compression Compression
	codec       codec.Codec
	rc          *resource.Controller
}

// Option configures Export and Import.
type Option func(*options)

// WithCompression selects the body compression. Defaults to zstd.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec selects the header codec. Defaults to codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithRateLimit caps the stream bandwidth in bytes per second.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.rc = resource.NewController(resource.Config{IOLimitBytesPerSec: bytesPerSec})
	}
}

func applyOptions(optFns []Option) options {
	o := options{compression: CompressionZSTD, codec: codec.Default}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Export writes every block of dev to w.
//
// Layout: Magic, uint16 codec name length, codec name, uint32 header length,
// encoded Header, compressed frames, an empty end frame and the CRC-32C of
// the uncompressed blocks. Integers are little endian.
func Export(ctx context.Context, dev device.BlockDevice, w io.Writer, optFns ...Option) (Header, error) {
	o := applyOptions(optFns)
	comp, err := ParseCompression(string(o.compression))
	if err != nil {
		return Header{}, err
	}
	if o.rc != nil {
		w = resource.NewRateLimitedWriter(ctx, w, o.rc)
	}
	bw := bufio.NewWriter(w)

	h := Header{
		Version:     Version,
		BlockSize:   device.BlockSize,
		Blocks:      device.Blocks(dev),
		Compression: comp,
	}
	if err := writePreamble(bw, o.codec, h); err != nil {
		return Header{}, err
	}

	cs, err := newCodecs(h.Compression)
	if err != nil {
		return Header{}, err
	}
	defer cs.Close()

	batches := make(chan []byte, 2)
	crc := hash.NewCRC32C()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		for start := uint32(0); start < h.Blocks; start += blocksPerFrame {
			n := min(blocksPerFrame, h.Blocks-start)
			buf := make([]byte, int(n)*device.BlockSize)
			for i := uint32(0); i < n; i++ {
				off := int(i) * device.BlockSize
				if err := dev.ReadBlock(gctx, start+i, buf[off:off+device.BlockSize]); err != nil {
					return err
				}
			}
			select {
			case batches <- buf:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for buf := range batches {
			_, _ = crc.Write(buf)
			frame, err := cs.encodeFrame(buf)
			if err != nil {
				return err
			}
			if _, err := bw.Write(frame); err != nil {
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Header{}, err
	}

	var tail [frameHeaderSize + 4]byte
	binary.LittleEndian.PutUint32(tail[frameHeaderSize:], crc.Sum32())
	if _, err := bw.Write(tail[:]); err != nil {
		return Header{}, err
	}
	if err := bw.Flush(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Import restores a snapshot onto dev. The device must be at least as large
// as the exported image.
//
// Blocks are written as frames arrive; when the trailing checksum does not
// match, ErrCorrupt is returned and the device content is undefined.
func Import(ctx context.Context, r io.Reader, dev device.BlockDevice, optFns ...Option) (Header, error) {
	o := applyOptions(optFns)
	if o.rc != nil {
		r = resource.NewRateLimitedReader(ctx, r, o.rc)
	}
	br := bufio.NewReader(r)

	h, err := ReadHeader(br)
	if err != nil {
		return Header{}, err
	}
	if h.Blocks > device.Blocks(dev) {
		return h, fmt.Errorf("%w: image has %d blocks, device %d", ErrIncompatible, h.Blocks, device.Blocks(dev))
	}

	cs, err := newCodecs(h.Compression)
	if err != nil {
		return h, err
	}
	defer cs.Close()

	type batch struct {
		start uint32
		data  []byte
	}
	batches := make(chan batch, 2)
	crc := hash.NewCRC32C()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		var next uint32
		for {
			data, err := cs.readFrame(br, blocksPerFrame*device.BlockSize)
			if err != nil {
				return err
			}
			if data == nil {
				break
			}
			if len(data)%device.BlockSize != 0 || next+uint32(len(data)/device.BlockSize) > h.Blocks {
				return fmt.Errorf("%w: frame exceeds image", ErrCorrupt)
			}
			_, _ = crc.Write(data)
			select {
			case batches <- batch{start: next, data: data}:
			case <-gctx.Done():
				return gctx.Err()
			}
			next += uint32(len(data) / device.BlockSize)
		}
		if next != h.Blocks {
			return fmt.Errorf("%w: got %d blocks, header says %d", ErrCorrupt, next, h.Blocks)
		}

		var trailer [4]byte
		if _, err := io.ReadFull(br, trailer[:]); err != nil {
			return fmt.Errorf("%w: trailer: %w", ErrCorrupt, err)
		}
		if got, want := crc.Sum32(), binary.LittleEndian.Uint32(trailer[:]); got != want {
			return fmt.Errorf("%w: checksum %#08x, want %#08x", ErrCorrupt, got, want)
		}
		return nil
	})
	g.Go(func() error {
		for b := range batches {
			for i := 0; i < len(b.data)/device.BlockSize; i++ {
				off := i * device.BlockSize
				if err := dev.WriteBlock(gctx, b.start+uint32(i), b.data[off:off+device.BlockSize]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return h, err
	}
	return h, nil
}

// ReadHeader parses the preamble of a snapshot stream.
func ReadHeader(r io.Reader) (Header, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return Header{}, fmt.Errorf("%w: magic: %w", ErrCorrupt, err)
	}
	if string(magic) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, magic)
	}

	var n16 [2]byte
	if _, err := io.ReadFull(r, n16[:]); err != nil {
		return Header{}, fmt.Errorf("%w: codec name: %w", ErrCorrupt, err)
	}
	nameLen := int(binary.LittleEndian.Uint16(n16[:]))
	if nameLen == 0 || nameLen > maxCodecName {
		return Header{}, fmt.Errorf("%w: codec name length %d", ErrCorrupt, nameLen)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Header{}, fmt.Errorf("%w: codec name: %w", ErrCorrupt, err)
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return Header{}, fmt.Errorf("%w: unknown codec %q", ErrIncompatible, name)
	}

	var n32 [4]byte
	if _, err := io.ReadFull(r, n32[:]); err != nil {
		return Header{}, fmt.Errorf("%w: header length: %w", ErrCorrupt, err)
	}
	hdrLen := binary.LittleEndian.Uint32(n32[:])
	if hdrLen == 0 || hdrLen > maxHeaderSize {
		return Header{}, fmt.Errorf("%w: header length %d", ErrCorrupt, hdrLen)
	}
	raw := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}

	var h Header
	if err := c.Unmarshal(raw, &h); err != nil {
		return Header{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: version %d", ErrIncompatible, h.Version)
	}
	if h.BlockSize != device.BlockSize {
		return h, fmt.Errorf("%w: block size %d", ErrIncompatible, h.BlockSize)
	}
	if _, err := ParseCompression(string(h.Compression)); err != nil || h.Compression == "" {
		return h, fmt.Errorf("%w: compression %q", ErrIncompatible, h.Compression)
	}
	return h, nil
}

func writePreamble(w io.Writer, c codec.Codec, h Header) error {
	raw, err := c.Marshal(h)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, len(Magic)+2+len(c.Name())+4+len(raw))
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(c.Name())))
	buf = append(buf, c.Name()...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(raw)))
	buf = append(buf, raw...)

	_, err = w.Write(buf)
	return err
}
