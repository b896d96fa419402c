package engine

import (
	"context"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/flashfs/hal"
)

type pageMeta struct {
	typ  byte
	id   uint16
	span uint16
}

type object struct {
	id      uint16
	name    string
	hdr     uint32
	spans   []uint32
	lens    []uint16
	size    uint32
	removed bool
}

// FS is a mounted filesystem. It is not safe for concurrent use.
type FS struct {
	lay    layout
	cb     hal.Callbacks
	logger *slog.Logger

	mounted bool

	free    *roaring.Bitmap
	deleted *roaring.Bitmap
	freeCnt []uint32
	delCnt  []uint32
	meta    []pageMeta
	cursor  int64

	objects map[uint16]*object
	names   map[string]*object
	fds     []descriptor

	eraseUnit uint32
	scratch   []byte
	gcRuns    uint64

	// shortWrite is the status that cut the last write short.
	shortWrite hal.Status
}

// Format erases the whole area described by cfg.
func Format(cfg Config) hal.Status {
	lay, st := cfg.layout()
	if st != hal.StatusOK {
		return st
	}
	for blk := uint32(0); blk < lay.blocks; blk++ {
		if st := eraseBlock(cfg.Callbacks.Erase, lay, cfg.PhysEraseBlock, blk); st != hal.StatusOK {
			return st
		}
	}
	return hal.StatusOK
}

func eraseBlock(erase hal.EraseFunc, lay layout, unit, blk uint32) hal.Status {
	start := lay.pageAddr(lay.firstPage(blk))
	for addr := start; addr < start+lay.blockSize; addr += unit {
		if st := erase(addr, unit); st != hal.StatusOK {
			return st
		}
	}
	return hal.StatusOK
}

// Mount scans the flash area and rebuilds the in-memory state.
func Mount(cfg Config) (*FS, hal.Status) {
	lay, st := cfg.layout()
	if st != hal.StatusOK {
		return nil, st
	}

	maxFiles := cfg.MaxOpenFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxOpenFiles
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fs := &FS{
		lay:     lay,
		cb:      cfg.Callbacks,
		logger:  logger,
		free:    roaring.New(),
		deleted: roaring.New(),
		freeCnt: make([]uint32, lay.blocks),
		delCnt:  make([]uint32, lay.blocks),
		meta:    make([]pageMeta, lay.pages),
		cursor:  -1,
		objects: make(map[uint16]*object),
		names:   make(map[string]*object),
		fds:     make([]descriptor, maxFiles),

		eraseUnit: cfg.PhysEraseBlock,
		scratch:   make([]byte, lay.pageSize),
	}

	if st := fs.scan(); st != hal.StatusOK {
		return nil, st
	}

	fs.mounted = true
	return fs, hal.StatusOK
}

// Unmount invalidates fs and every descriptor obtained from it.
func (fs *FS) Unmount() hal.Status {
	if !fs.mounted {
		return hal.StatusNotMounted
	}
	fs.mounted = false
	for i := range fs.fds {
		fs.fds[i] = descriptor{}
	}
	return hal.StatusOK
}

// Mounted reports whether fs is still usable.
func (fs *FS) Mounted() bool {
	return fs.mounted
}

// GCRuns returns how many blocks garbage collection has reclaimed.
func (fs *FS) GCRuns() uint64 {
	return fs.gcRuns
}

type spanRef struct {
	page   uint32
	length uint16
}

func (fs *FS) scan() hal.Status {
	probe := fs.scratch[:headerSize+nameSize]
	headers := make(map[uint16]uint32)
	var order []uint16
	names := make(map[uint16]string)
	data := make(map[uint16]map[uint16]spanRef)

	for p := uint32(0); p < fs.lay.pages; p++ {
		if st := fs.cb.Read(fs.lay.pageAddr(p), uint32(len(probe)), probe); st != hal.StatusOK {
			return st
		}

		if isErased(probe[:headerSize]) {
			fs.markFree(p)
			continue
		}

		h := decodeHeader(probe)
		if h.flags&flagReserved != flagReserved || !h.used() {
			return hal.StatusNotAFilesystem
		}
		if h.deleted() || !h.final() {
			fs.markDeleted(p)
			continue
		}
		if h.id == 0 || h.id > maxObjectID {
			return hal.StatusNotAFilesystem
		}

		switch h.typ {
		case typeHeader:
			if h.span != 0 || h.length == 0 || h.length > MaxNameLen {
				return hal.StatusNotAFilesystem
			}
			if _, dup := headers[h.id]; dup {
				fs.markDeleted(p)
				continue
			}
			headers[h.id] = p
			order = append(order, h.id)
			names[h.id] = string(probe[headerSize : headerSize+int(h.length)])
		case typeData:
			if uint32(h.length) > fs.lay.dataCap || h.span > maxSpan {
				return hal.StatusNotAFilesystem
			}
			spans := data[h.id]
			if spans == nil {
				spans = make(map[uint16]spanRef)
				data[h.id] = spans
			}
			if prev, dup := spans[h.span]; dup {
				if prev.length > h.length {
					fs.markDeleted(p)
					continue
				}
				fs.markDeleted(prev.page)
			}
			spans[h.span] = spanRef{page: p, length: h.length}
		default:
			return hal.StatusNotAFilesystem
		}
		fs.meta[p] = pageMeta{typ: h.typ, id: h.id, span: h.span}
	}

	for _, id := range order {
		hdr := headers[id]
		obj := &object{id: id, name: names[id], hdr: hdr}
		spans := data[id]
		for s := uint16(0); ; s++ {
			ref, ok := spans[s]
			if !ok {
				break
			}
			obj.spans = append(obj.spans, ref.page)
			obj.lens = append(obj.lens, ref.length)
			obj.size += uint32(ref.length)
			delete(spans, s)
		}
		for _, ref := range spans {
			fs.markDeleted(ref.page)
		}
		delete(data, id)

		if _, dup := fs.names[obj.name]; dup {
			fs.markDeleted(hdr)
			for _, p := range obj.spans {
				fs.markDeleted(p)
			}
			continue
		}
		fs.objects[id] = obj
		fs.names[obj.name] = obj
	}

	// Data without a header belongs to an object whose removal was cut short.
	for _, spans := range data {
		for _, ref := range spans {
			fs.markDeleted(ref.page)
		}
	}

	fs.logger.LogAttrs(context.Background(), slog.LevelDebug, "engine mounted",
		slog.Int("objects", len(fs.objects)),
		slog.Uint64("free_pages", fs.free.GetCardinality()),
		slog.Uint64("deleted_pages", fs.deleted.GetCardinality()),
	)
	return hal.StatusOK
}

func (fs *FS) markFree(p uint32) {
	fs.free.Add(p)
	fs.freeCnt[fs.lay.blockOf(p)]++
}

func (fs *FS) markDeleted(p uint32) {
	if fs.deleted.Contains(p) {
		return
	}
	fs.deleted.Add(p)
	fs.delCnt[fs.lay.blockOf(p)]++
}

// take moves p from the free set to the live set.
func (fs *FS) take(p uint32) {
	fs.free.Remove(p)
	fs.freeCnt[fs.lay.blockOf(p)]--
}
