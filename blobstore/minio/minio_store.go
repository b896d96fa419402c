package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/flashfs/blobstore"
	"github.com/minio/minio-go/v7"
)

const contentType = "application/octet-stream"

// Store keeps flash images in a MinIO or other S3-compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
	opts   Options
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore returns a store on bucket.
func NewStore(client *minio.Client, bucket string, optFns ...Option) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		opts:   applyOptions(optFns),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.opts.Prefix, name)
}

func (s *Store) putOptions() minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType:  contentType,
		PartSize:     s.opts.PartSize,
		NumThreads:   s.opts.Concurrency,
		UserMetadata: s.opts.Metadata,
	}
}

func errorCode(err error) string {
	return minio.ToErrorResponse(err).Code
}

func isNotFound(err error) bool {
	code := errorCode(err)
	return code == "NoSuchKey" || code == "NotFound"
}

func isModified(err error) bool {
	return errorCode(err) == "PreconditionFailed" || isNotFound(err)
}

// Open stats name and returns a handle pinned to its ETag.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	b := &minioBlob{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   info.Size,
	}
	if !s.opts.DisablePinning {
		b.etag = info.ETag
	}
	return b, nil
}

// Put uploads data in one request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), s.putOptions())
	return err
}

// Create streams a multipart upload through a pipe.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)
	w := &writer{pw: pw, cancel: cancel, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, s.putOptions())
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

// Delete removes name. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns the sorted names under prefix, relative to the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.opts.Prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}

	slices.Sort(names)
	return names, nil
}

type minioBlob struct {
	client *minio.Client
	bucket string
	key    string
	etag   string
	size   int64
}

func (b *minioBlob) Size() int64 { return b.size }

func (b *minioBlob) Close() error { return nil }

func (b *minioBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := int(min(int64(len(p)), b.size-off))

	rc, err := b.ReadRange(ctx, off, int64(want))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := io.ReadFull(rc, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *minioBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, min(off+length, b.size)-1); err != nil {
		return nil, err
	}
	if b.etag != "" {
		if err := opts.SetMatchETag(b.etag); err != nil {
			return nil, err
		}
	}

	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return nil, b.mapErr(err)
	}
	return &pinnedReader{obj: obj, blob: b}, nil
}

func (b *minioBlob) mapErr(err error) error {
	if err != nil && err != io.EOF && isModified(err) {
		return fmt.Errorf("%w: %s", blobstore.ErrModified, b.key)
	}
	return err
}

// pinnedReader translates precondition failures, which minio-go reports on
// the first Read, into blobstore.ErrModified.
type pinnedReader struct {
	obj  *minio.Object
	blob *minioBlob
}

func (r *pinnedReader) Read(p []byte) (int, error) {
	n, err := r.obj.Read(p)
	return n, r.blob.mapErr(err)
}

func (r *pinnedReader) Close() error { return r.obj.Close() }

// writer feeds a background PutObject through a pipe.
type writer struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan error

	mu       sync.Mutex
	finished bool
	closeErr error
}

func (w *writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	finished := w.finished
	w.mu.Unlock()
	if finished {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

func (w *writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return w.closeErr
	}
	w.finished = true
	defer w.cancel()

	if err := w.pw.Close(); err != nil {
		w.closeErr = err
		return err
	}
	w.closeErr = <-w.done
	return w.closeErr
}

func (w *writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return nil
	}
	w.finished = true
	w.cancel()
	_ = w.pw.CloseWithError(context.Canceled)
	<-w.done
	return nil
}
