// Package hash provides the checksums used to protect blockfs data.
//
// # CRC-16
//
// The on-disk format reserves 16 bits for every checksum: one covering the
// file system metadata (superblock, inode map and inode table) and one per
// inode covering its data block. Both use CRC-16/CCITT-FALSE:
//
//	sum := hash.CRC16(block)
//
// The write path (close, create, format) and the verify path (mount, open,
// integrity checks) must use the same function; swapping the algorithm makes
// every existing image fail verification.
//
// # CRC32-Castagnoli
//
// Snapshot streams carry a CRC32C trailer over the uncompressed image:
//
//	h := hash.NewCRC32C()
//	h.Write(block0)
//	h.Write(block1)
//	sum := h.Sum32()
package hash
