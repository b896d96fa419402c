// Package testutil provides testing utilities for flashfs.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic, thread-safe RNG for generating payloads,
// prior flash contents and names, plus small helpers for AND-write
// expectations.
//
//	rng := testutil.NewRNG(seed)
//	payload := rng.Bytes(4096)
//	prior := rng.Bytes(4096)
//	want := testutil.And(prior, payload)
package testutil
