// Package resource governs device IO.
//
// A Controller combines two limits:
//
//   - IO bandwidth: a token bucket (golang.org/x/time/rate) charged per byte
//   - Concurrency: a weighted semaphore (golang.org/x/sync/semaphore) bounding
//     in-flight requests
//
// Throttled block devices charge every block read and write:
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 1 << 20, // 1MiB/s
//	    MaxInFlight:        4,
//	})
//	if err := rc.Begin(ctx); err != nil {
//	    return err
//	}
//	defer rc.End()
//	if err := rc.AcquireIO(ctx, 2048); err != nil {
//	    return err
//	}
//
// Snapshot streams use the RateLimitedWriter/RateLimitedReader wrappers.
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
