package blockdev

import (
	"sync"

	"github.com/hupe1980/flashfs/internal/conv"
)

// Memory is an in-memory NOR flash: a fixed-length byte buffer partitioned
// into erase units.
type Memory struct {
	mu         sync.RWMutex
	data       []byte
	eraseBlock uint32
}

// NewMemory returns an erased (all 0xFF) device of size bytes.
func NewMemory(size, eraseBlock uint32) (*Memory, error) {
	if err := checkGeometry(size, eraseBlock); err != nil {
		return nil, err
	}

	data := make([]byte, size)
	fillErased(data)

	return &Memory{data: data, eraseBlock: eraseBlock}, nil
}

// NewMemoryFrom wraps an existing flash image. The device takes ownership of
// buf; later device writes are visible through it.
func NewMemoryFrom(buf []byte, eraseBlock uint32) (*Memory, error) {
	size, err := conv.IntToUint32(len(buf))
	if err != nil {
		return nil, err
	}
	if err := checkGeometry(size, eraseBlock); err != nil {
		return nil, err
	}
	return &Memory{data: buf, eraseBlock: eraseBlock}, nil
}

// Read implements Device.
func (m *Memory) Read(addr uint32, dst []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := checkRange(OpRead, addr, uint64(len(dst)), m.size()); err != nil {
		return err
	}
	copy(dst, m.data[addr:])
	return nil
}

// Write implements Device.
func (m *Memory) Write(addr uint32, src []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkRange(OpWrite, addr, uint64(len(src)), m.size()); err != nil {
		return err
	}
	andInto(m.data[addr:], src)
	return nil
}

// Erase implements Device.
func (m *Memory) Erase(addr, size uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkErase(addr, size, m.size(), m.eraseBlock); err != nil {
		return err
	}
	fillErased(m.data[addr : addr+size])
	return nil
}

// Size implements Device.
func (m *Memory) Size() uint32 {
	return m.size()
}

// EraseBlockSize implements Device.
func (m *Memory) EraseBlockSize() uint32 {
	return m.eraseBlock
}

// Bytes returns a copy of the raw image.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

func (m *Memory) size() uint32 {
	return uint32(len(m.data))
}
