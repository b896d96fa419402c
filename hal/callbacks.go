package hal

// ReadFunc copies size bytes starting at addr into dst.
type ReadFunc func(addr, size uint32, dst []byte) Status

// WriteFunc programs size bytes of src at addr.
type WriteFunc func(addr, size uint32, src []byte) Status

// EraseFunc erases [addr, addr+size).
type EraseFunc func(addr, size uint32) Status

// Callbacks is the triple an engine is mounted with.
type Callbacks struct {
	Read  ReadFunc
	Write WriteFunc
	Erase EraseFunc
}
