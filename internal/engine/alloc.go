package engine

import (
	"context"
	"log/slog"

	"github.com/hupe1980/flashfs/hal"
)

// allocPage returns a free page, running garbage collection when only the
// reserved block is left.
func (fs *FS) allocPage() (uint32, hal.Status) {
	for {
		if p, ok := fs.findFree(-1); ok {
			return p, hal.StatusOK
		}
		if st := fs.gc(); st != hal.StatusOK {
			return 0, st
		}
	}
}

// findFree picks a free page outside the block skip. Partially used blocks
// are filled first; a fully free block is opened only while another fully
// free block remains, unless skip is set (relocation may use the reserve).
func (fs *FS) findFree(skip int64) (uint32, bool) {
	if fs.cursor >= 0 && fs.cursor != skip && fs.freeCnt[fs.cursor] > 0 &&
		fs.freeCnt[fs.cursor] < fs.lay.ppb {
		return fs.firstFreeIn(uint32(fs.cursor)), true
	}

	var (
		emptyBlocks uint32
		firstEmpty  int64 = -1
	)
	for blk := uint32(0); blk < fs.lay.blocks; blk++ {
		if int64(blk) == skip {
			continue
		}
		switch cnt := fs.freeCnt[blk]; {
		case cnt == 0:
			continue
		case cnt == fs.lay.ppb:
			emptyBlocks++
			if firstEmpty < 0 {
				firstEmpty = int64(blk)
			}
		default:
			fs.cursor = int64(blk)
			return fs.firstFreeIn(blk), true
		}
	}

	if firstEmpty >= 0 && (emptyBlocks > 1 || skip >= 0) {
		fs.cursor = firstEmpty
		return fs.firstFreeIn(uint32(firstEmpty)), true
	}
	return 0, false
}

func (fs *FS) firstFreeIn(blk uint32) uint32 {
	it := fs.free.Iterator()
	it.AdvanceIfNeeded(fs.lay.firstPage(blk))
	return it.Next()
}

// gc reclaims the block with the most deleted pages.
func (fs *FS) gc() hal.Status {
	victim := int64(-1)
	var best uint32
	for blk := uint32(0); blk < fs.lay.blocks; blk++ {
		if fs.delCnt[blk] > best {
			best = fs.delCnt[blk]
			victim = int64(blk)
		}
	}
	if victim < 0 {
		return hal.StatusFull
	}

	blk := uint32(victim)
	first := fs.lay.firstPage(blk)
	moved := 0
	for p := first; p < first+fs.lay.ppb; p++ {
		if fs.free.Contains(p) || fs.deleted.Contains(p) {
			continue
		}
		if st := fs.relocate(p, victim); st != hal.StatusOK {
			return st
		}
		moved++
	}

	if st := eraseBlock(fs.cb.Erase, fs.lay, fs.eraseUnit, blk); st != hal.StatusOK {
		return st
	}

	fs.deleted.RemoveRange(uint64(first), uint64(first+fs.lay.ppb))
	fs.free.AddRange(uint64(first), uint64(first+fs.lay.ppb))
	fs.delCnt[blk] = 0
	fs.freeCnt[blk] = fs.lay.ppb
	for p := first; p < first+fs.lay.ppb; p++ {
		fs.meta[p] = pageMeta{}
	}
	if fs.cursor == victim {
		fs.cursor = -1
	}
	fs.gcRuns++

	fs.logger.LogAttrs(context.Background(), slog.LevelDebug, "engine gc",
		slog.Uint64("block", uint64(blk)),
		slog.Uint64("reclaimed", uint64(best)),
		slog.Int("moved", moved),
	)
	return hal.StatusOK
}

// relocate copies live page p out of block skip and retires the original.
func (fs *FS) relocate(p uint32, skip int64) hal.Status {
	dst, ok := fs.findFree(skip)
	if !ok {
		return hal.StatusFull
	}

	buf := fs.scratch
	if st := fs.cb.Read(fs.lay.pageAddr(p), fs.lay.pageSize, buf); st != hal.StatusOK {
		return st
	}
	h := decodeHeader(buf)
	size := uint32(headerSize) + uint32(h.length)

	h.flags = 0xFF &^ flagUsed
	h.encode(buf)

	fs.take(dst)
	if st := fs.program(dst, buf[:size]); st != hal.StatusOK {
		fs.markDeleted(dst)
		return st
	}

	m := fs.meta[p]
	fs.meta[dst] = m
	obj := fs.objects[m.id]
	if obj != nil {
		if m.typ == typeHeader {
			obj.hdr = dst
		} else if int(m.span) < len(obj.spans) && obj.spans[m.span] == p {
			obj.spans[m.span] = dst
		}
	}

	fs.markDeleted(p)
	return hal.StatusOK
}

// program writes a page image whose flags mark it used, then finalizes it.
func (fs *FS) program(p uint32, img []byte) hal.Status {
	addr := fs.lay.pageAddr(p)
	if st := fs.cb.Write(addr, uint32(len(img)), img); st != hal.StatusOK {
		return st
	}
	return fs.clearFlag(p, flagFinal)
}

func (fs *FS) clearFlag(p uint32, bit byte) hal.Status {
	b := [1]byte{0xFF &^ bit}
	return fs.cb.Write(fs.lay.pageAddr(p), 1, b[:])
}

// writePage stores a new finalized page and returns its index.
func (fs *FS) writePage(typ byte, id, span uint16, payload []byte) (uint32, hal.Status) {
	p, st := fs.allocPage()
	if st != hal.StatusOK {
		return 0, st
	}

	img := fs.scratch[:headerSize+len(payload)]
	pageHeader{
		flags:  0xFF &^ flagUsed,
		typ:    typ,
		id:     id,
		span:   span,
		length: uint16(len(payload)),
	}.encode(img)
	copy(img[headerSize:], payload)

	fs.take(p)
	if st := fs.program(p, img); st != hal.StatusOK {
		fs.markDeleted(p)
		return 0, st
	}
	fs.meta[p] = pageMeta{typ: typ, id: id, span: span}
	return p, hal.StatusOK
}

// retire marks p deleted on flash and in memory.
func (fs *FS) retire(p uint32) hal.Status {
	fs.markDeleted(p)
	return fs.clearFlag(p, flagDeleted)
}
