// Package layout defines the on-disk format of a blockfs partition.
//
// Block 0 holds the superblock (inode count), the occupancy map, the metadata
// checksum and as many inode records as fit. When a partition has more inodes
// than block 0 can hold, block 1 carries the rest and every data block shifts
// by one. Each inode owns exactly one data block. All integers are little
// endian.
package layout
