package blockdev

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/flashfs/internal/conv"
)

// Backing is the byte-range storage a File device runs on.
type Backing interface {
	io.ReaderAt
	io.WriterAt
}

// File is a flash device backed by a file (or any Backing). Writes are
// read-modify-write so the AND semantics hold on the backing bytes.
type File struct {
	b          Backing
	size       uint32
	eraseBlock uint32
	closed     bool
}

// NewFile returns a device over b. The caller guarantees b holds at least
// size bytes.
func NewFile(b Backing, size, eraseBlock uint32) (*File, error) {
	if err := checkGeometry(size, eraseBlock); err != nil {
		return nil, err
	}
	return &File{b: b, size: size, eraseBlock: eraseBlock}, nil
}

// OpenFile opens an existing image file read-write. The device size is the
// file size.
func OpenFile(path string, eraseBlock uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	size, err := conv.Int64ToUint32(fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("blockdev: image %s: %w", path, err)
	}

	dev, err := NewFile(f, size, eraseBlock)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return dev, nil
}

// CreateFile creates (or truncates) path and fills it with size erased bytes.
func CreateFile(path string, size, eraseBlock uint32) (*File, error) {
	if err := checkGeometry(size, eraseBlock); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	blank := bytes.Repeat([]byte{Erased}, int(eraseBlock))
	for off := uint32(0); off < size; off += eraseBlock {
		if _, err := f.WriteAt(blank, int64(off)); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return NewFile(f, size, eraseBlock)
}

// Read implements Device.
func (d *File) Read(addr uint32, dst []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkRange(OpRead, addr, uint64(len(dst)), d.size); err != nil {
		return err
	}
	return d.readFull(addr, dst)
}

// Write implements Device.
func (d *File) Write(addr uint32, src []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkRange(OpWrite, addr, uint64(len(src)), d.size); err != nil {
		return err
	}

	was := make([]byte, len(src))
	if err := d.readFull(addr, was); err != nil {
		return err
	}
	andInto(was, src)

	_, err := d.b.WriteAt(was, int64(addr))
	return err
}

// Erase implements Device.
func (d *File) Erase(addr, size uint32) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkErase(addr, size, d.size, d.eraseBlock); err != nil {
		return err
	}

	blank := bytes.Repeat([]byte{Erased}, int(d.eraseBlock))
	for off := addr; off < addr+size; off += d.eraseBlock {
		if _, err := d.b.WriteAt(blank, int64(off)); err != nil {
			return err
		}
	}
	return nil
}

// Size implements Device.
func (d *File) Size() uint32 { return d.size }

// EraseBlockSize implements Device.
func (d *File) EraseBlockSize() uint32 { return d.eraseBlock }

// Sync flushes the backing store if it supports it.
func (d *File) Sync() error {
	if s, ok := d.b.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Close closes the backing store if it is an io.Closer.
func (d *File) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if c, ok := d.b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (d *File) readFull(addr uint32, dst []byte) error {
	n, err := d.b.ReadAt(dst, int64(addr))
	if n == len(dst) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("blockdev: short read at %#x (%d of %d bytes): %w", addr, n, len(dst), err)
}
