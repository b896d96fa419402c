package engine

import (
	"cmp"
	"slices"

	"github.com/hupe1980/flashfs/hal"
)

// Dir calls fn for every object in flash order of its header page.
func (fs *FS) Dir(fn func(name string, size, id uint32)) hal.Status {
	if !fs.mounted {
		return hal.StatusNotMounted
	}

	objs := make([]*object, 0, len(fs.objects))
	for _, obj := range fs.objects {
		objs = append(objs, obj)
	}
	slices.SortFunc(objs, func(a, b *object) int {
		return cmp.Compare(a.hdr, b.hdr)
	})

	for _, obj := range objs {
		fn(obj.name, obj.size, uint32(obj.id))
	}
	return hal.StatusOK
}

// Info reports the usable capacity and the bytes held by live pages. One
// block is excluded from the total since it is kept free for garbage
// collection.
func (fs *FS) Info() (total, used uint32, st hal.Status) {
	if !fs.mounted {
		return 0, 0, hal.StatusNotMounted
	}
	total = (fs.lay.blocks - 1) * fs.lay.ppb * fs.lay.pageSize
	live := uint64(fs.lay.pages) - fs.free.GetCardinality() - fs.deleted.GetCardinality()
	return total, uint32(live) * fs.lay.pageSize, hal.StatusOK
}
