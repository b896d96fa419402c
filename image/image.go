package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/hupe1980/flashfs/blobstore"
	"github.com/hupe1980/flashfs/blockdev"
	"golang.org/x/sync/errgroup"
)

// Error records the image operation and blob that failed.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("image %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Save reads the whole device and stores it as name.
func Save(ctx context.Context, store blobstore.BlobStore, name string, dev blockdev.Device, optFns ...func(*Options)) error {
	return save(ctx, store, name, dev, applyOptions(optFns))
}

func save(ctx context.Context, store blobstore.BlobStore, name string, dev blockdev.Device, o Options) error {
	start := time.Now()
	th := newThrottle(o.BytesPerSec, o.ChunkSize)

	raw, err := readDevice(ctx, dev, o.ChunkSize, th)
	if err != nil {
		return &Error{Op: "save", Name: name, Err: err}
	}

	payload, c, err := encode(raw, o.Compression)
	if err != nil {
		return &Error{Op: "save", Name: name, Err: err}
	}
	hdr, _ := Header{
		Version:     Version,
		Compression: c,
		RawSize:     dev.Size(),
		Checksum:    crc32.ChecksumIEEE(raw),
	}.MarshalBinary()

	if err := put(ctx, store, name, th, hdr, payload); err != nil {
		return &Error{Op: "save", Name: name, Err: err}
	}

	o.Logger.LogAttrs(ctx, slog.LevelInfo, "image saved",
		slog.String("name", name),
		slog.Int("raw_bytes", len(raw)),
		slog.Int("stored_bytes", HeaderSize+len(payload)),
		slog.String("compression", c.String()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func put(ctx context.Context, store blobstore.BlobStore, name string, th *throttle, parts ...[]byte) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	tw := th.writer(ctx, w)
	for _, p := range parts {
		if _, err := tw.Write(p); err != nil {
			return errors.Join(err, w.Abort())
		}
	}
	return w.Close()
}

func readDevice(ctx context.Context, dev blockdev.Device, chunk int, th *throttle) ([]byte, error) {
	raw := make([]byte, dev.Size())
	for off := 0; off < len(raw); off += chunk {
		end := min(off+chunk, len(raw))
		if err := th.wait(ctx, end-off); err != nil {
			return nil, err
		}
		if err := dev.Read(uint32(off), raw[off:end]); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// Stat reads the header of a stored image.
func Stat(ctx context.Context, store blobstore.BlobStore, name string) (Header, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return Header{}, &Error{Op: "stat", Name: name, Err: err}
	}
	defer blob.Close()

	hdr, err := readHeader(ctx, blob)
	if err != nil {
		return Header{}, &Error{Op: "stat", Name: name, Err: err}
	}
	return hdr, nil
}

func readHeader(ctx context.Context, blob blobstore.Blob) (Header, error) {
	if blob.Size() < HeaderSize {
		return Header{}, ErrTruncated
	}
	buf := make([]byte, HeaderSize)
	if _, err := blob.ReadAt(ctx, buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return Header{}, err
	}
	var hdr Header
	if err := hdr.UnmarshalBinary(buf); err != nil {
		return Header{}, err
	}
	return hdr, nil
}

// Load erases dev and programs the image stored as name. The image must
// match the device size exactly. Any failure is returned.
func Load(ctx context.Context, store blobstore.BlobStore, name string, dev blockdev.Device, optFns ...func(*Options)) error {
	return load(ctx, store, name, dev, applyOptions(optFns))
}

func load(ctx context.Context, store blobstore.BlobStore, name string, dev blockdev.Device, o Options) error {
	start := time.Now()

	raw, hdr, err := fetch(ctx, store, name, dev.Size(), newThrottle(o.BytesPerSec, o.ChunkSize))
	if err == nil {
		err = program(ctx, dev, raw, o.ChunkSize, newThrottle(o.BytesPerSec, o.ChunkSize))
	}
	if err != nil {
		o.Logger.LogAttrs(ctx, slog.LevelError, "image load failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return &Error{Op: "load", Name: name, Err: err}
	}

	o.Logger.LogAttrs(ctx, slog.LevelInfo, "image loaded",
		slog.String("name", name),
		slog.Uint64("raw_bytes", uint64(hdr.RawSize)),
		slog.String("compression", hdr.Compression.String()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// fetch downloads, decodes and verifies an image of the given size.
func fetch(ctx context.Context, store blobstore.BlobStore, name string, size uint32, th *throttle) ([]byte, Header, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, Header{}, err
	}
	defer blob.Close()

	hdr, err := readHeader(ctx, blob)
	if err != nil {
		return nil, Header{}, err
	}
	if hdr.RawSize != size {
		return nil, hdr, fmt.Errorf("%w: image %d bytes, device %d bytes", ErrSizeMismatch, hdr.RawSize, size)
	}

	rc, err := blob.ReadRange(ctx, HeaderSize, blob.Size()-HeaderSize)
	if err != nil {
		return nil, hdr, err
	}
	payload, err := io.ReadAll(th.reader(ctx, rc))
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, hdr, err
	}

	raw, err := decode(payload, hdr.Compression, hdr.RawSize)
	if err != nil {
		return nil, hdr, err
	}
	if sum := crc32.ChecksumIEEE(raw); sum != hdr.Checksum {
		return nil, hdr, fmt.Errorf("%w: got %#08x, want %#08x", ErrChecksum, sum, hdr.Checksum)
	}
	return raw, hdr, nil
}

// program erases dev block by block, then writes every chunk of raw that is
// not already erased.
func program(ctx context.Context, dev blockdev.Device, raw []byte, chunk int, th *throttle) error {
	eb := dev.EraseBlockSize()
	for addr := uint32(0); addr < dev.Size(); addr += eb {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := dev.Erase(addr, eb); err != nil {
			return err
		}
	}

	for off := 0; off < len(raw); off += chunk {
		end := min(off+chunk, len(raw))
		part := raw[off:end]
		if isErased(part) {
			continue
		}
		if err := th.wait(ctx, len(part)); err != nil {
			return err
		}
		if err := dev.Write(uint32(off), part); err != nil {
			return err
		}
	}
	return nil
}

func isErased(b []byte) bool {
	return len(bytes.TrimLeft(b, "\xff")) == 0
}

// SaveAll saves every device concurrently, keyed by blob name.
func SaveAll(ctx context.Context, store blobstore.BlobStore, devs map[string]blockdev.Device, optFns ...func(*Options)) error {
	o := applyOptions(optFns)
	return forAll(ctx, devs, o.Concurrency, func(ctx context.Context, name string, dev blockdev.Device) error {
		return save(ctx, store, name, dev, o)
	})
}

// LoadAll loads every device concurrently, keyed by blob name. It stops at
// the first failure.
func LoadAll(ctx context.Context, store blobstore.BlobStore, devs map[string]blockdev.Device, optFns ...func(*Options)) error {
	o := applyOptions(optFns)
	return forAll(ctx, devs, o.Concurrency, func(ctx context.Context, name string, dev blockdev.Device) error {
		return load(ctx, store, name, dev, o)
	})
}

func forAll(ctx context.Context, devs map[string]blockdev.Device, limit int, fn func(context.Context, string, blockdev.Device) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	names := make([]string, 0, len(devs))
	for name := range devs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		dev := devs[name]
		g.Go(func() error {
			return fn(ctx, name, dev)
		})
	}
	return g.Wait()
}
