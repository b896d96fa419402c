package engine

import (
	"strings"

	"github.com/hupe1980/flashfs/hal"
)

// Stat describes a stored object.
type Stat struct {
	ID   uint16
	Name string
	Size uint32
}

func checkName(name string) hal.Status {
	switch {
	case len(name) > MaxNameLen:
		return hal.StatusNameTooLong
	case name == "", strings.IndexByte(name, 0) >= 0:
		return hal.StatusNotFound
	}
	return hal.StatusOK
}

// Open opens or creates path and returns a descriptor (> 0) or a negative
// status.
func (fs *FS) Open(path string, flags Flags) int32 {
	if !fs.mounted {
		return int32(hal.StatusNotMounted)
	}
	if st := checkName(path); st != hal.StatusOK {
		return int32(st)
	}

	fd, ok := fs.allocFD()
	if !ok {
		return int32(hal.StatusOutOfFileDescriptors)
	}

	obj := fs.names[path]
	switch {
	case obj != nil && flags&FlagCreat != 0 && flags&FlagExcl != 0:
		return int32(hal.StatusFileExists)
	case obj == nil && flags&FlagCreat == 0:
		return int32(hal.StatusNotFound)
	case obj == nil:
		var st hal.Status
		if obj, st = fs.create(path); st != hal.StatusOK {
			return int32(st)
		}
	case flags&FlagTrunc != 0:
		if st := fs.truncate(obj); st != hal.StatusOK {
			return int32(st)
		}
	}

	fs.fds[fd-1] = descriptor{obj: obj, flags: flags}
	return fd
}

func (fs *FS) nextID() (uint16, bool) {
	for id := uint16(1); id <= maxObjectID; id++ {
		if _, used := fs.objects[id]; !used {
			return id, true
		}
	}
	return 0, false
}

func (fs *FS) create(name string) (*object, hal.Status) {
	id, ok := fs.nextID()
	if !ok {
		return nil, hal.StatusFull
	}

	p, st := fs.writePage(typeHeader, id, 0, []byte(name))
	if st != hal.StatusOK {
		return nil, st
	}

	obj := &object{id: id, name: name, hdr: p}
	fs.objects[id] = obj
	fs.names[name] = obj
	return obj, hal.StatusOK
}

func (fs *FS) truncate(obj *object) hal.Status {
	for len(obj.spans) > 0 {
		last := len(obj.spans) - 1
		if st := fs.retire(obj.spans[last]); st != hal.StatusOK {
			return st
		}
		obj.size -= uint32(obj.lens[last])
		obj.spans = obj.spans[:last]
		obj.lens = obj.lens[:last]
	}
	return hal.StatusOK
}

// Read reads up to len(buf) bytes at the descriptor position. It returns the
// number of bytes read, 0 at end of file, or a negative status.
func (fs *FS) Read(fd int32, buf []byte) int32 {
	d, st := fs.liveDescriptor(fd)
	if st != hal.StatusOK {
		return int32(st)
	}
	if d.flags&FlagRdOnly == 0 {
		return int32(hal.StatusNotReadable)
	}

	obj := d.obj
	if d.pos >= obj.size || len(buf) == 0 {
		return 0
	}

	n := obj.size - d.pos
	if uint64(len(buf)) < uint64(n) {
		n = uint32(len(buf))
	}
	if n > 1<<31-1 {
		n = 1<<31 - 1
	}

	var done uint32
	for done < n {
		off := d.pos + done
		span := off / fs.lay.dataCap
		in := off % fs.lay.dataCap
		m := min(fs.lay.dataCap-in, n-done)

		addr := fs.lay.pageAddr(obj.spans[span]) + headerSize + in
		if st := fs.cb.Read(addr, m, buf[done:done+m]); st != hal.StatusOK {
			if done > 0 {
				break
			}
			return int32(st)
		}
		done += m
	}

	d.pos += done
	return int32(done)
}

// Write writes data at the descriptor position (or at the end when the
// descriptor has FlagAppend). If storing fails after some bytes were
// written, the partial count is returned.
func (fs *FS) Write(fd int32, data []byte) int32 {
	d, st := fs.liveDescriptor(fd)
	if st != hal.StatusOK {
		return int32(st)
	}
	if d.flags&FlagWrOnly == 0 {
		return int32(hal.StatusNotWritable)
	}

	obj := d.obj
	if d.flags&FlagAppend != 0 || d.pos > obj.size {
		d.pos = obj.size
	}
	if len(data) > 1<<31-1 {
		data = data[:1<<31-1]
	}

	fs.shortWrite = hal.StatusOK
	var done uint32
	for done < uint32(len(data)) {
		off := d.pos + done
		span := off / fs.lay.dataCap
		in := off % fs.lay.dataCap
		m := min(fs.lay.dataCap-in, uint32(len(data))-done)

		if st := fs.writeSpan(obj, span, in, data[done:done+m]); st != hal.StatusOK {
			if done > 0 {
				fs.shortWrite = st
				break
			}
			return int32(st)
		}
		done += m
	}

	d.pos += done
	return int32(done)
}

// writeSpan rewrites one span with chunk placed at offset in.
func (fs *FS) writeSpan(obj *object, span, in uint32, chunk []byte) hal.Status {
	if span > maxSpan {
		return hal.StatusFull
	}

	work := make([]byte, fs.lay.dataCap)
	var (
		old    uint32
		oldLen uint32
		exists = span < uint32(len(obj.spans))
	)
	if exists {
		old = obj.spans[span]
		oldLen = uint32(obj.lens[span])
		if oldLen > 0 {
			addr := fs.lay.pageAddr(old) + headerSize
			if st := fs.cb.Read(addr, oldLen, work); st != hal.StatusOK {
				return st
			}
		}
	}

	copy(work[in:], chunk)
	newLen := max(oldLen, in+uint32(len(chunk)))

	p, st := fs.writePage(typeData, obj.id, uint16(span), work[:newLen])
	if st != hal.StatusOK {
		return st
	}

	// writePage may have run gc, which can move the old page.
	if exists {
		old = obj.spans[span]
		obj.spans[span] = p
		obj.lens[span] = uint16(newLen)
		obj.size += newLen - oldLen
		return fs.retire(old)
	}

	obj.spans = append(obj.spans, p)
	obj.lens = append(obj.lens, uint16(newLen))
	obj.size += newLen
	return hal.StatusOK
}

// ShortWriteStatus returns the status that stopped the last Write after a
// partial count, or StatusOK.
func (fs *FS) ShortWriteStatus() hal.Status {
	return fs.shortWrite
}

// Lseek moves the descriptor position and returns it. A position before the
// start is rejected; a position past the end is clamped to the end and
// reported as end of object.
func (fs *FS) Lseek(fd int32, offset int32, whence int) int32 {
	d, st := fs.liveDescriptor(fd)
	if st != hal.StatusOK {
		return int32(st)
	}

	var base int64
	switch whence {
	case SeekSet:
	case SeekCur:
		base = int64(d.pos)
	case SeekEnd:
		base = int64(d.obj.size)
	default:
		return int32(hal.StatusSeekBounds)
	}

	pos := base + int64(offset)
	switch {
	case pos < 0:
		return int32(hal.StatusSeekBounds)
	case pos > int64(d.obj.size):
		d.pos = d.obj.size
		return int32(hal.StatusEndOfObject)
	}

	d.pos = uint32(pos)
	return int32(pos)
}

// Tell returns the descriptor position.
func (fs *FS) Tell(fd int32) int32 {
	d, st := fs.liveDescriptor(fd)
	if st != hal.StatusOK {
		return int32(st)
	}
	return int32(d.pos)
}

// Close releases fd.
func (fs *FS) Close(fd int32) hal.Status {
	d, st := fs.descriptorFor(fd)
	if st != hal.StatusOK {
		return st
	}
	*d = descriptor{}
	return hal.StatusOK
}

// Remove deletes path. Descriptors still open on it report file deleted.
func (fs *FS) Remove(path string) hal.Status {
	if !fs.mounted {
		return hal.StatusNotMounted
	}
	if st := checkName(path); st != hal.StatusOK {
		return st
	}
	obj := fs.names[path]
	if obj == nil {
		return hal.StatusNotFound
	}

	if st := fs.truncate(obj); st != hal.StatusOK {
		return st
	}
	if st := fs.retire(obj.hdr); st != hal.StatusOK {
		return st
	}

	obj.removed = true
	delete(fs.objects, obj.id)
	delete(fs.names, obj.name)
	return hal.StatusOK
}

// Rename gives oldPath the name newPath. newPath must not exist.
func (fs *FS) Rename(oldPath, newPath string) hal.Status {
	if !fs.mounted {
		return hal.StatusNotMounted
	}
	if st := checkName(oldPath); st != hal.StatusOK {
		return st
	}
	if st := checkName(newPath); st != hal.StatusOK {
		return st
	}

	obj := fs.names[oldPath]
	if obj == nil {
		return hal.StatusNotFound
	}
	if _, taken := fs.names[newPath]; taken {
		return hal.StatusConflictingName
	}

	p, st := fs.writePage(typeHeader, obj.id, 0, []byte(newPath))
	if st != hal.StatusOK {
		return st
	}
	old := obj.hdr
	obj.hdr = p
	delete(fs.names, obj.name)
	obj.name = newPath
	fs.names[newPath] = obj
	return fs.retire(old)
}

// Stat fills st for path.
func (fs *FS) Stat(path string, st *Stat) hal.Status {
	if !fs.mounted {
		return hal.StatusNotMounted
	}
	if s := checkName(path); s != hal.StatusOK {
		return s
	}
	obj := fs.names[path]
	if obj == nil {
		return hal.StatusNotFound
	}
	*st = Stat{ID: obj.id, Name: obj.name, Size: obj.size}
	return hal.StatusOK
}

// Fstat fills st for the object behind fd.
func (fs *FS) Fstat(fd int32, st *Stat) hal.Status {
	d, s := fs.liveDescriptor(fd)
	if s != hal.StatusOK {
		return s
	}
	*st = Stat{ID: d.obj.id, Name: d.obj.name, Size: d.obj.size}
	return hal.StatusOK
}
