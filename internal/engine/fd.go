package engine

import "github.com/hupe1980/flashfs/hal"

// Flags are the open flags understood by Open.
type Flags uint32

// Open flags.
const (
	FlagAppend Flags = 1 << 0
	FlagTrunc  Flags = 1 << 1
	FlagCreat  Flags = 1 << 2
	FlagRdOnly Flags = 1 << 3
	FlagWrOnly Flags = 1 << 4
	FlagRdWr         = FlagRdOnly | FlagWrOnly
	FlagDirect Flags = 1 << 5
	FlagExcl   Flags = 1 << 6
)

// Seek origins.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

type descriptor struct {
	obj   *object
	flags Flags
	pos   uint32
}

func (d descriptor) open() bool {
	return d.obj != nil
}

func (fs *FS) allocFD() (int32, bool) {
	for i := range fs.fds {
		if !fs.fds[i].open() {
			return int32(i + 1), true
		}
	}
	return 0, false
}

// descriptorFor resolves fd to its slot.
func (fs *FS) descriptorFor(fd int32) (*descriptor, hal.Status) {
	if !fs.mounted {
		return nil, hal.StatusNotMounted
	}
	if fd <= 0 || int(fd) > len(fs.fds) {
		return nil, hal.StatusBadDescriptor
	}
	d := &fs.fds[fd-1]
	if !d.open() {
		return nil, hal.StatusFileClosed
	}
	return d, hal.StatusOK
}

// liveDescriptor is descriptorFor plus a check that the object still exists.
func (fs *FS) liveDescriptor(fd int32) (*descriptor, hal.Status) {
	d, st := fs.descriptorFor(fd)
	if st != hal.StatusOK {
		return nil, st
	}
	if d.obj.removed {
		return nil, hal.StatusFileDeleted
	}
	return d, hal.StatusOK
}
