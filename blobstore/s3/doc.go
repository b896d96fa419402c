// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("images/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	err = image.Save(ctx, store, "boot.img", dev)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large images
//   - CRC32C checksums on single-part puts
//   - Automatic pagination for listing
package s3
