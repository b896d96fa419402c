package blockdev

import (
	"bytes"
	"fmt"
)

// verifyMinEraseBlock fits the partial write at offset 10..20 inside one unit.
const verifyMinEraseBlock = 20

// Verify runs a destructive self-test against dev: it checks erase, AND-write
// and erase-boundary behaviour on the second and third erase units. The data
// previously stored there is lost.
func Verify(dev Device) error {
	eb := dev.EraseBlockSize()
	if eb < verifyMinEraseBlock {
		return fmt.Errorf("blockdev: verify needs an erase block of at least %d bytes, device has %d", verifyMinEraseBlock, eb)
	}
	if uint64(dev.Size()) < 3*uint64(eb) {
		return fmt.Errorf("blockdev: verify needs at least 3 erase blocks, device has %d bytes", dev.Size())
	}

	addr, size := eb, eb
	read := func() ([]byte, error) {
		buf := make([]byte, size)
		return buf, dev.Read(addr, buf)
	}

	if err := dev.Erase(addr, size); err != nil {
		return fmt.Errorf("blockdev: verify erase: %w", err)
	}
	got, err := read()
	if err != nil {
		return fmt.Errorf("blockdev: verify read: %w", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{Erased}, int(size))) {
		return fmt.Errorf("blockdev: verify: erased block is not all 0xFF")
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := dev.Write(addr, data); err != nil {
		return fmt.Errorf("blockdev: verify write: %w", err)
	}
	if got, err = read(); err != nil {
		return fmt.Errorf("blockdev: verify read: %w", err)
	}
	if !bytes.Equal(got, data) {
		return fmt.Errorf("blockdev: verify: readback after write differs")
	}

	zeros := make([]byte, 10)
	if err := dev.Write(addr+10, zeros); err != nil {
		return fmt.Errorf("blockdev: verify partial write: %w", err)
	}
	if got, err = read(); err != nil {
		return fmt.Errorf("blockdev: verify read: %w", err)
	}
	if !bytes.Equal(got[:10], data[:10]) || !bytes.Equal(got[20:], data[20:]) {
		return fmt.Errorf("blockdev: verify: partial write touched neighbouring bytes")
	}
	if !bytes.Equal(got[10:20], zeros) {
		return fmt.Errorf("blockdev: verify: partial write not applied")
	}

	if err := dev.Erase(addr+size, size); err != nil {
		return fmt.Errorf("blockdev: verify erase: %w", err)
	}
	if err := dev.Write(addr+size, data); err != nil {
		return fmt.Errorf("blockdev: verify write: %w", err)
	}
	if err := dev.Erase(addr, size); err != nil {
		return fmt.Errorf("blockdev: verify erase: %w", err)
	}
	next := make([]byte, size)
	if err := dev.Read(addr+size, next); err != nil {
		return fmt.Errorf("blockdev: verify read: %w", err)
	}
	if !bytes.Equal(next, data) {
		return fmt.Errorf("blockdev: verify: erase crossed its erase block boundary")
	}

	inverted := make([]byte, size)
	for i, b := range data {
		inverted[i] = ^b
	}
	if err := dev.Write(addr, data); err != nil {
		return fmt.Errorf("blockdev: verify write: %w", err)
	}
	if err := dev.Write(addr, inverted); err != nil {
		return fmt.Errorf("blockdev: verify write: %w", err)
	}
	if got, err = read(); err != nil {
		return fmt.Errorf("blockdev: verify read: %w", err)
	}
	if !bytes.Equal(got, make([]byte, size)) {
		return fmt.Errorf("blockdev: verify: write does not AND with stored data")
	}

	return nil
}
