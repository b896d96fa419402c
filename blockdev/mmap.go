package blockdev

import (
	"github.com/hupe1980/flashfs/internal/conv"
	"github.com/hupe1980/flashfs/internal/mmap"
)

// Mmap is a flash device over a shared writable mapping of an image file.
type Mmap struct {
	m   *mmap.Mapping
	mem *Memory
}

// OpenMmap maps the image at path read-write.
func OpenMmap(path string, eraseBlock uint32) (*Mmap, error) {
	m, err := mmap.OpenRW(path)
	if err != nil {
		return nil, err
	}

	mem, err := NewMemoryFrom(m.Bytes(), eraseBlock)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	return &Mmap{m: m, mem: mem}, nil
}

// Read implements Device.
func (d *Mmap) Read(addr uint32, dst []byte) error {
	if d.m.Bytes() == nil {
		return ErrClosed
	}
	return d.mem.Read(addr, dst)
}

// Write implements Device.
func (d *Mmap) Write(addr uint32, src []byte) error {
	if d.m.Bytes() == nil {
		return ErrClosed
	}
	return d.mem.Write(addr, src)
}

// Erase implements Device.
func (d *Mmap) Erase(addr, size uint32) error {
	if d.m.Bytes() == nil {
		return ErrClosed
	}
	return d.mem.Erase(addr, size)
}

// Size implements Device.
func (d *Mmap) Size() uint32 {
	size, _ := conv.IntToUint32(d.m.Size())
	return size
}

// EraseBlockSize implements Device.
func (d *Mmap) EraseBlockSize() uint32 { return d.mem.EraseBlockSize() }

// Sync flushes the mapping to the image file.
func (d *Mmap) Sync() error { return d.m.Sync() }

// Close unmaps the image. The device is unusable afterwards.
func (d *Mmap) Close() error { return d.m.Close() }
