// Package conv provides checked integer conversions.
//
// Flash addresses and sizes are uint32 on the device side while Go slices,
// file offsets and descriptor cursors are int or int64. Conversions that cross
// that boundary with caller-supplied values go through this package so an
// oversized request surfaces as an error instead of silently wrapping.
//
// For conversions that are provably safe by construction (page indexes,
// loop counters bounded by the geometry), use direct casts.
package conv
