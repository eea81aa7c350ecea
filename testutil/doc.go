// Package testutil provides testing utilities for blockfs.
//
// This package is intended for use in tests and benchmarks only.
//
//	rng := testutil.NewRNG(seed)
//	data := rng.Bytes(2048)
//	names := rng.Names(64, 12)
package testutil
