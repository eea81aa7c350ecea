package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/blockfs/internal/hash"
)

// Superblock holds the partition-wide counters.
type Superblock struct {
	InodeCount uint8
}

// OccupancyMap marks which inode slots hold a file. On disk each slot is
// one byte, 0 or 1.
type OccupancyMap [MaxFiles]bool

// Inode describes one single-block file.
type Inode struct {
	Name     string
	Size     uint16
	Checksum uint16
}

// Metadata is the in-memory image of the metadata blocks.
// Only the first InodeCount entries of Inodes are meaningful.
type Metadata struct {
	Superblock
	Map      OccupancyMap
	Checksum uint16
	Inodes   [MaxFiles]Inode
}

// New returns sealed, empty metadata for l.
func New(l Layout) *Metadata {
	m := &Metadata{Superblock: Superblock{InodeCount: uint8(l.InodeCount)}}
	m.Seal()
	return m
}

// Layout recomputes the layout from the stored inode count.
func (m *Metadata) Layout() (Layout, error) {
	return FromInodeCount(int(m.InodeCount))
}

// Lookup returns the slot of the occupied inode called name, or -1.
func (m *Metadata) Lookup(name string) int {
	for i := 0; i < int(m.InodeCount); i++ {
		if m.Map[i] && m.Inodes[i].Name == name {
			return i
		}
	}
	return -1
}

// FreeSlot returns the lowest unoccupied slot, or -1.
func (m *Metadata) FreeSlot() int {
	for i := 0; i < int(m.InodeCount); i++ {
		if !m.Map[i] {
			return i
		}
	}
	return -1
}

// Used returns the number of occupied slots.
func (m *Metadata) Used() int {
	n := 0
	for i := 0; i < int(m.InodeCount); i++ {
		if m.Map[i] {
			n++
		}
	}
	return n
}

// ChecksumPayload returns the bytes covered by the metadata checksum:
// superblock, occupancy map and the inode table, without the stored checksum.
func (m *Metadata) ChecksumPayload() []byte {
	n := int(m.InodeCount)
	buf := make([]byte, 1+MaxFiles+n*InodeSize)
	m.putHeader(buf)
	for i := 0; i < n; i++ {
		m.Inodes[i].put(buf[1+MaxFiles+i*InodeSize:])
	}
	return buf
}

// Seal recomputes and stores the metadata checksum.
func (m *Metadata) Seal() {
	m.Checksum = hash.CRC16(m.ChecksumPayload())
}

// Encode serializes m into one or two zero-padded blocks.
func (m *Metadata) Encode(l Layout) [][]byte {
	blocks := make([][]byte, l.MetadataBlocks())
	for i := range blocks {
		blocks[i] = make([]byte, BlockSize)
	}

	b0 := blocks[0]
	m.putHeader(b0)
	binary.LittleEndian.PutUint16(b0[1+MaxFiles:], m.Checksum)
	for i := 0; i < l.PrimaryInodes; i++ {
		m.Inodes[i].put(b0[HeaderSize+i*InodeSize:])
	}
	for i := 0; i < l.OverflowInodes; i++ {
		m.Inodes[l.PrimaryInodes+i].put(blocks[1][i*InodeSize:])
	}
	return blocks
}

func (m *Metadata) putHeader(buf []byte) {
	buf[0] = m.InodeCount
	for i, used := range m.Map {
		if used {
			buf[1+i] = 1
		} else {
			buf[1+i] = 0
		}
	}
}

// InodeCountOf reads the inode count from a raw block 0.
func InodeCountOf(block0 []byte) int {
	return int(block0[0])
}

// Decode parses raw metadata blocks. blocks[0] is required; blocks[1] is
// required when the stored inode count overflows block 0.
func Decode(blocks [][]byte) (*Metadata, Layout, error) {
	if len(blocks) == 0 || len(blocks[0]) != BlockSize {
		return nil, Layout{}, fmt.Errorf("%w: block 0 missing", ErrCorrupt)
	}
	b0 := blocks[0]

	l, err := FromInodeCount(InodeCountOf(b0))
	if err != nil {
		return nil, Layout{}, err
	}
	if l.OverflowInodes > 0 && (len(blocks) < 2 || len(blocks[1]) != BlockSize) {
		return nil, l, ErrShortMetadata
	}

	m := &Metadata{Superblock: Superblock{InodeCount: b0[0]}}
	for i := range m.Map {
		m.Map[i] = b0[1+i] != 0
	}
	m.Checksum = binary.LittleEndian.Uint16(b0[1+MaxFiles:])
	for i := 0; i < l.PrimaryInodes; i++ {
		m.Inodes[i] = decodeInode(b0[HeaderSize+i*InodeSize:])
	}
	for i := 0; i < l.OverflowInodes; i++ {
		m.Inodes[l.PrimaryInodes+i] = decodeInode(blocks[1][i*InodeSize:])
	}
	return m, l, nil
}

// ChecksumFromBlocks computes the metadata checksum straight from stored
// blocks, so a check does not depend on a decode/encode round trip.
func ChecksumFromBlocks(blocks [][]byte, l Layout) (uint16, error) {
	if len(blocks) < l.MetadataBlocks() {
		return 0, ErrShortMetadata
	}
	h := hash.NewCRC16()
	_, _ = h.Write(blocks[0][:1+MaxFiles])
	_, _ = h.Write(blocks[0][HeaderSize : HeaderSize+l.PrimaryInodes*InodeSize])
	if l.OverflowInodes > 0 {
		_, _ = h.Write(blocks[1][:l.OverflowInodes*InodeSize])
	}
	return h.Sum16(), nil
}

// StoredChecksum returns the checksum field of a raw block 0.
func StoredChecksum(block0 []byte) uint16 {
	return binary.LittleEndian.Uint16(block0[1+MaxFiles:])
}

func (in Inode) put(buf []byte) {
	name := buf[:NameSize]
	clear(name)
	copy(name, in.Name)
	binary.LittleEndian.PutUint16(buf[NameSize:], in.Size)
	binary.LittleEndian.PutUint16(buf[NameSize+2:], in.Checksum)
}

func decodeInode(buf []byte) Inode {
	name := buf[:NameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Inode{
		Name:     string(name),
		Size:     binary.LittleEndian.Uint16(buf[NameSize:]),
		Checksum: binary.LittleEndian.Uint16(buf[NameSize+2:]),
	}
}
