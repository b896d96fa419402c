package engine

import (
	"log/slog"

	"github.com/hupe1980/flashfs/hal"
)

// DefaultMaxOpenFiles is the descriptor table size used when Config leaves it
// unset.
const DefaultMaxOpenFiles = 4

// Config describes the flash area and the callbacks used to reach it.
type Config struct {
	PhysSize       uint32
	PhysAddr       uint32
	PhysEraseBlock uint32
	LogPageSize    uint32
	LogBlockSize   uint32

	// MaxOpenFiles is the number of descriptor slots. Zero means
	// DefaultMaxOpenFiles.
	MaxOpenFiles int

	Callbacks hal.Callbacks

	// Logger receives debug output about garbage collection. Optional.
	Logger *slog.Logger
}

type layout struct {
	base      uint32
	blockSize uint32
	pageSize  uint32
	blocks    uint32
	ppb       uint32 // pages per block
	pages     uint32
	dataCap   uint32 // payload bytes per data page
}

func (c Config) layout() (layout, hal.Status) {
	switch {
	case c.PhysSize == 0, c.PhysEraseBlock == 0, c.LogPageSize == 0, c.LogBlockSize == 0:
		return layout{}, hal.StatusNotConfigured
	case c.PhysSize%c.PhysEraseBlock != 0,
		c.PhysSize%c.LogBlockSize != 0,
		c.LogBlockSize%c.LogPageSize != 0,
		c.LogBlockSize%c.PhysEraseBlock != 0,
		c.PhysAddr%c.PhysEraseBlock != 0:
		return layout{}, hal.StatusNotConfigured
	case c.LogPageSize < minPageSize, c.LogPageSize-headerSize > 0xFFFF:
		return layout{}, hal.StatusNotConfigured
	case uint64(c.PhysAddr)+uint64(c.PhysSize) > 1<<32:
		return layout{}, hal.StatusNotConfigured
	case c.Callbacks.Read == nil, c.Callbacks.Write == nil, c.Callbacks.Erase == nil:
		return layout{}, hal.StatusNotConfigured
	case c.MaxOpenFiles < 0:
		return layout{}, hal.StatusNotConfigured
	}

	blocks := c.PhysSize / c.LogBlockSize
	if blocks < 2 {
		return layout{}, hal.StatusProbeTooFewBlocks
	}

	ppb := c.LogBlockSize / c.LogPageSize
	return layout{
		base:      c.PhysAddr,
		blockSize: c.LogBlockSize,
		pageSize:  c.LogPageSize,
		blocks:    blocks,
		ppb:       ppb,
		pages:     blocks * ppb,
		dataCap:   c.LogPageSize - headerSize,
	}, hal.StatusOK
}

func (l layout) pageAddr(p uint32) uint32 {
	return l.base + p*l.pageSize
}

func (l layout) blockOf(p uint32) uint32 {
	return p / l.ppb
}

func (l layout) firstPage(blk uint32) uint32 {
	return blk * l.ppb
}
