package blockdev

import (
	"errors"
	"fmt"
)

// Erased is the value of every byte after an erase.
const Erased byte = 0xFF

var (
	// ErrOutOfRange is wrapped by every BoundsError.
	ErrOutOfRange = errors.New("blockdev: out of range")
	// ErrMisaligned is wrapped by every AlignmentError.
	ErrMisaligned = errors.New("blockdev: misaligned erase")
	// ErrClosed is returned by devices used after Close.
	ErrClosed = errors.New("blockdev: device closed")
	// ErrInvalidGeometry is returned when size and erase unit do not fit together.
	ErrInvalidGeometry = errors.New("blockdev: size must be a non-zero multiple of the erase block size")
)

// Device is the narrow contract the device adapter consumes. Any byte-range
// backend with NOR flash semantics can implement it.
type Device interface {
	// Read copies len(dst) bytes starting at addr into dst.
	Read(addr uint32, dst []byte) error
	// Write ANDs src into the bytes starting at addr.
	Write(addr uint32, src []byte) error
	// Erase sets [addr, addr+size) to 0xFF. Both must be erase-unit aligned.
	Erase(addr, size uint32) error
	// Size returns the device size in bytes.
	Size() uint32
	// EraseBlockSize returns the erase unit in bytes.
	EraseBlockSize() uint32
}

// Op identifies a device primitive.
type Op uint8

const (
	// OpRead is a read.
	OpRead Op = iota
	// OpWrite is an AND-write.
	OpWrite
	// OpErase is an erase.
	OpErase
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpErase:
		return "erase"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// BoundsError reports an address range that does not fit the device.
type BoundsError struct {
	Op    Op
	Addr  uint32
	Size  uint64
	Limit uint32
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("blockdev: %s [%#x, %#x) exceeds device size %#x",
		e.Op, e.Addr, uint64(e.Addr)+e.Size, e.Limit)
}

func (e *BoundsError) Unwrap() error { return ErrOutOfRange }

// AlignmentError reports an erase that does not cover whole erase units.
type AlignmentError struct {
	Addr       uint32
	Size       uint32
	EraseBlock uint32
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("blockdev: erase [%#x, +%#x) not aligned to erase block %#x",
		e.Addr, e.Size, e.EraseBlock)
}

func (e *AlignmentError) Unwrap() error { return ErrMisaligned }

func checkRange(op Op, addr uint32, size uint64, limit uint32) error {
	if uint64(addr)+size > uint64(limit) {
		return &BoundsError{Op: op, Addr: addr, Size: size, Limit: limit}
	}
	return nil
}

func checkErase(addr, size, limit, eraseBlock uint32) error {
	if err := checkRange(OpErase, addr, uint64(size), limit); err != nil {
		return err
	}
	if addr%eraseBlock != 0 || size%eraseBlock != 0 {
		return &AlignmentError{Addr: addr, Size: size, EraseBlock: eraseBlock}
	}
	return nil
}

func checkGeometry(size, eraseBlock uint32) error {
	if size == 0 || eraseBlock == 0 || size%eraseBlock != 0 {
		return fmt.Errorf("%w (size %d, erase block %d)", ErrInvalidGeometry, size, eraseBlock)
	}
	return nil
}

// andInto applies NOR program semantics: dst[i] &= src[i].
func andInto(dst, src []byte) {
	for i, b := range src {
		dst[i] &= b
	}
}

func fillErased(dst []byte) {
	for i := range dst {
		dst[i] = Erased
	}
}
