// Package cache provides a least-recently-used cache for device blocks.
package cache
