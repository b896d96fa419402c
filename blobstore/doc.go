// Package blobstore stores flash images outside the device.
//
// BlobStore is the interface the image package saves to and loads from.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local directory with atomic rename on write
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - minio.Store: MinIO and other S3-compatible servers
package blobstore
