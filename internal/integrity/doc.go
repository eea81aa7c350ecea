// Package integrity verifies blockfs metadata and file checksums against
// what is currently stored on the device, never against in-memory state.
package integrity
