package flashfs

import (
	"iter"

	"github.com/hupe1980/flashfs/internal/engine"
)

// MaxNameLen is the longest file name, in bytes.
const MaxNameLen = engine.MaxNameLen

// DirEntry is a snapshot of one stored file.
type DirEntry struct {
	Name string
	Size uint32
	ID   uint32
}

// List returns every file currently stored, in engine order.
func (fs *FS) List() ([]DirEntry, error) {
	var entries []DirEntry
	st := fs.eng.Dir(func(name string, size, id uint32) {
		entries = append(entries, DirEntry{Name: name, Size: size, ID: id})
	})
	if err := fs.translateStatus("list", "", int32(st)); err != nil {
		return nil, err
	}
	return entries, nil
}

// Entries returns a sequence over the stored files. Every iteration takes a
// fresh listing.
func (fs *FS) Entries() iter.Seq2[DirEntry, error] {
	return func(yield func(DirEntry, error) bool) {
		entries, err := fs.List()
		if err != nil {
			yield(DirEntry{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}
