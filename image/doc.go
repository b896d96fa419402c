// Package image saves raw flash images to a blobstore and loads them back.
//
// A stored image is a 16 byte header followed by the payload:
//
//	offset  size  field
//	0       4     magic "FLIM"
//	4       1     format version (1)
//	5       1     compression (0 none, 1 LZ4, 2 ZSTD)
//	6       2     reserved, zero
//	8       4     raw image size, little-endian
//	12      4     CRC-32 (IEEE) of the raw image, little-endian
//
// The raw image is the exact byte content of the device, erased regions
// included. Load erases the target device and programs the image; every
// failure is returned to the caller and leaves the device in an unspecified
// state.
package image
