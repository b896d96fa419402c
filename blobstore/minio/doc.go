// Package minio stores flash images in MinIO or another S3-compatible
// server (Ceph, SeaweedFS, Garage) through minio-go.
//
// Opened blobs are pinned to the ETag seen at Open. If the image is
// replaced while it is being loaded, reads fail with blobstore.ErrModified
// instead of returning a mix of both versions.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minioblob.NewStore(client, "flash", minioblob.WithPrefix("images/"))
//	err = image.Save(ctx, store, "boot.img", dev)
package minio
