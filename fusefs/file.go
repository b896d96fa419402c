package fusefs

import (
	"context"
	"errors"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hupe1980/flashfs"
)

type fileNode struct {
	fs.Inode

	root *Root

	nameMu sync.Mutex
	name   string
}

var (
	_ fs.NodeGetattrer = (*fileNode)(nil)
	_ fs.NodeSetattrer = (*fileNode)(nil)
	_ fs.NodeOpener    = (*fileNode)(nil)
)

func (n *fileNode) getName() string {
	n.nameMu.Lock()
	defer n.nameMu.Unlock()
	return n.name
}

func (n *fileNode) setName(name string) {
	n.nameMu.Lock()
	n.name = name
	n.nameMu.Unlock()
}

func (n *fileNode) Getattr(_ context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.root.mu.Lock()
	e, err := n.root.fsys.Stat(n.getName())
	n.root.mu.Unlock()
	if err != nil {
		return toErrno(err)
	}
	fileAttr(e, &out.Attr)
	return 0
}

// Setattr supports truncation to zero only; the engine cannot shorten a file
// in place. Other attribute changes are accepted and ignored.
func (n *fileNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	name := n.getName()

	if size, ok := in.GetSize(); ok {
		if n.root.readOnly {
			return syscall.EROFS
		}

		n.root.mu.Lock()
		e, err := n.root.fsys.Stat(name)
		if err == nil && uint64(e.Size) != size {
			err = n.truncate(name, size)
		}
		n.root.mu.Unlock()
		if err != nil {
			if errors.Is(err, errUnsupportedSize) {
				return syscall.ENOTSUP
			}
			return n.root.fail("setattr", name, err)
		}
	}

	return n.Getattr(ctx, fh, out)
}

var errUnsupportedSize = errors.New("fusefs: only truncation to zero is supported")

func (n *fileNode) truncate(name string, size uint64) error {
	if size != 0 {
		return errUnsupportedSize
	}
	fd, err := n.root.fsys.OpenFile(name, flashfs.WrOnly|flashfs.Trunc)
	if err != nil {
		return err
	}
	return n.root.fsys.Close(fd)
}

func (n *fileNode) Open(_ context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	f := openFlags(flags) &^ (flashfs.Creat | flashfs.Excl)
	if n.root.readOnly && f&(flashfs.WrOnly|flashfs.Trunc|flashfs.Append) != 0 {
		return nil, 0, syscall.EROFS
	}

	name := n.getName()
	n.root.mu.Lock()
	fd, err := n.root.fsys.OpenFile(name, f)
	n.root.mu.Unlock()
	if err != nil {
		return nil, 0, n.root.fail("open", name, err)
	}
	return &handle{root: n.root, fd: fd}, fuse.FOPEN_DIRECT_IO, 0
}

// handle is an open flashfs descriptor.
type handle struct {
	root *Root
	fd   flashfs.FD
}

var (
	_ fs.FileReader   = (*handle)(nil)
	_ fs.FileWriter   = (*handle)(nil)
	_ fs.FileFlusher  = (*handle)(nil)
	_ fs.FileReleaser = (*handle)(nil)
)

func (h *handle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.root.mu.Lock()
	defer h.root.mu.Unlock()

	if _, err := h.root.fsys.Seek(h.fd, off, flashfs.SeekSet); err != nil {
		if errors.Is(err, flashfs.ErrEndOfObject) {
			return fuse.ReadResultData(nil), 0
		}
		return nil, toErrno(err)
	}
	data, err := h.root.fsys.Read(h.fd, len(dest))
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(data), 0
}

// Write writes at off. Writing beyond the end of file would leave a hole,
// which the engine cannot store, so it fails with EINVAL.
func (h *handle) Write(_ context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.root.mu.Lock()
	defer h.root.mu.Unlock()

	if _, err := h.root.fsys.Seek(h.fd, off, flashfs.SeekSet); err != nil {
		return 0, toErrno(err)
	}
	n, err := h.root.fsys.Write(h.fd, data)
	if err != nil && n == 0 {
		return 0, toErrno(err)
	}
	return uint32(n), 0
}

func (h *handle) Flush(context.Context) syscall.Errno {
	return 0
}

func (h *handle) Release(context.Context) syscall.Errno {
	h.root.mu.Lock()
	defer h.root.mu.Unlock()
	return toErrno(h.root.fsys.Close(h.fd))
}
