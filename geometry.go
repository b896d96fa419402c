package flashfs

import (
	"fmt"

	"github.com/hupe1980/flashfs/blockdev"
)

// Geometry describes the flash area a filesystem is mounted on. It is fixed
// for the lifetime of a mount.
type Geometry struct {
	PhysSize       uint32
	PhysAddr       uint32
	PhysEraseBlock uint32
	LogPageSize    uint32
	LogBlockSize   uint32
}

// DefaultGeometry returns the classic layout for a device of size bytes:
// 64 KiB erase blocks and logical blocks with 256-byte pages.
func DefaultGeometry(size uint32) Geometry {
	return Geometry{
		PhysSize:       size,
		PhysEraseBlock: 65536,
		LogPageSize:    256,
		LogBlockSize:   65536,
	}
}

// Validate checks the divisibility rules between the fields.
func (g Geometry) Validate() error {
	switch {
	case g.PhysSize == 0 || g.PhysEraseBlock == 0 || g.LogPageSize == 0 || g.LogBlockSize == 0:
		return fmt.Errorf("%w: all sizes must be non-zero: %+v", ErrInvalidGeometry, g)
	case g.PhysSize%g.PhysEraseBlock != 0:
		return fmt.Errorf("%w: erase block %d does not divide size %d", ErrInvalidGeometry, g.PhysEraseBlock, g.PhysSize)
	case g.PhysSize%g.LogBlockSize != 0:
		return fmt.Errorf("%w: logical block %d does not divide size %d", ErrInvalidGeometry, g.LogBlockSize, g.PhysSize)
	case g.LogBlockSize%g.LogPageSize != 0:
		return fmt.Errorf("%w: page %d does not divide logical block %d", ErrInvalidGeometry, g.LogPageSize, g.LogBlockSize)
	case g.LogBlockSize%g.PhysEraseBlock != 0:
		return fmt.Errorf("%w: logical block %d is not a multiple of erase block %d", ErrInvalidGeometry, g.LogBlockSize, g.PhysEraseBlock)
	case g.PhysAddr%g.PhysEraseBlock != 0:
		return fmt.Errorf("%w: address %#x is not erase block aligned", ErrInvalidGeometry, g.PhysAddr)
	}
	return nil
}

// fits checks that the area lies inside dev and matches its erase unit.
func (g Geometry) fits(dev blockdev.Device) error {
	if uint64(g.PhysAddr)+uint64(g.PhysSize) > uint64(dev.Size()) {
		return fmt.Errorf("%w: area [%#x, +%#x) exceeds device size %#x", ErrInvalidGeometry, g.PhysAddr, g.PhysSize, dev.Size())
	}
	if eb := dev.EraseBlockSize(); eb == 0 || g.PhysEraseBlock%eb != 0 {
		return fmt.Errorf("%w: erase block %d is not a multiple of the device erase unit %d", ErrInvalidGeometry, g.PhysEraseBlock, eb)
	}
	return nil
}
