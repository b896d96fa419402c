package fusefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hupe1980/flashfs"
)

// Root is the root directory node.
type Root struct {
	fs.Inode

	mu       sync.Mutex
	fsys     *flashfs.FS
	logger   *slog.Logger
	readOnly bool
}

var (
	_ fs.NodeGetattrer = (*Root)(nil)
	_ fs.NodeReaddirer = (*Root)(nil)
	_ fs.NodeLookuper  = (*Root)(nil)
	_ fs.NodeCreater   = (*Root)(nil)
	_ fs.NodeUnlinker  = (*Root)(nil)
	_ fs.NodeRenamer   = (*Root)(nil)
	_ fs.NodeStatfser  = (*Root)(nil)
)

// NewRoot returns the root node for fsys.
func NewRoot(fsys *flashfs.FS, opts Options) *Root {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Root{fsys: fsys, logger: logger, readOnly: opts.ReadOnly}
}

func ino(id uint32) uint64 {
	// Inode 1 is the root.
	return uint64(id) + 1
}

func fileAttr(e flashfs.DirEntry, out *fuse.Attr) {
	out.Ino = ino(e.ID)
	out.Size = uint64(e.Size)
	out.Mode = fuse.S_IFREG | 0o644
	out.Nlink = 1
}

func (r *Root) fail(op, name string, err error) syscall.Errno {
	errno := toErrno(err)
	r.logger.Debug("fuse operation failed",
		slog.String("op", op),
		slog.String("name", name),
		slog.String("errno", errno.Error()),
		slog.Any("error", err),
	)
	return errno
}

// Getattr implements fs.NodeGetattrer.
func (r *Root) Getattr(_ context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0o755
	if r.readOnly {
		out.Mode = fuse.S_IFDIR | 0o555
	}
	out.Nlink = 2
	return 0
}

// Readdir implements fs.NodeReaddirer.
func (r *Root) Readdir(_ context.Context) (fs.DirStream, syscall.Errno) {
	r.mu.Lock()
	entries, err := r.fsys.List()
	r.mu.Unlock()
	if err != nil {
		return nil, r.fail("readdir", "", err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, fuse.DirEntry{Name: e.Name, Ino: ino(e.ID), Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(list), 0
}

// Lookup implements fs.NodeLookuper.
func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	r.mu.Lock()
	e, err := r.fsys.Stat(name)
	r.mu.Unlock()
	if err != nil {
		return nil, toErrno(err)
	}

	fileAttr(e, &out.Attr)
	return r.newFileInode(ctx, e), 0
}

func (r *Root) newFileInode(ctx context.Context, e flashfs.DirEntry) *fs.Inode {
	return r.NewInode(ctx, &fileNode{root: r, name: e.Name}, fs.StableAttr{Mode: fuse.S_IFREG, Ino: ino(e.ID)})
}

// Create implements fs.NodeCreater.
func (r *Root) Create(ctx context.Context, name string, flags, _ uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	if r.readOnly {
		return nil, nil, 0, syscall.EROFS
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fd, err := r.fsys.OpenFile(name, openFlags(flags)|flashfs.Creat)
	if err != nil {
		return nil, nil, 0, r.fail("create", name, err)
	}
	e, err := r.fsys.Fstat(fd)
	if err != nil {
		_ = r.fsys.Close(fd)
		return nil, nil, 0, r.fail("create", name, err)
	}

	fileAttr(e, &out.Attr)
	return r.newFileInode(ctx, e), &handle{root: r, fd: fd}, fuse.FOPEN_DIRECT_IO, 0
}

// Unlink implements fs.NodeUnlinker. Open handles on the file report
// ESTALE afterwards.
func (r *Root) Unlink(_ context.Context, name string) syscall.Errno {
	if r.readOnly {
		return syscall.EROFS
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fsys.Remove(name); err != nil {
		return r.fail("unlink", name, err)
	}
	return 0
}

// Rename implements fs.NodeRenamer. An existing target is replaced unless
// RENAME_NOREPLACE is set.
func (r *Root) Rename(_ context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	const renameNoReplace = 0x1

	if r.readOnly {
		return syscall.EROFS
	}
	if newParent.EmbeddedInode() != &r.Inode {
		return syscall.EXDEV
	}
	if flags&^renameNoReplace != 0 {
		return syscall.EINVAL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if name == newName {
		return 0
	}
	if len(newName) > flashfs.MaxNameLen {
		return syscall.ENAMETOOLONG
	}
	if _, err := r.fsys.Stat(name); err != nil {
		return r.fail("rename", name, err)
	}

	if _, err := r.fsys.Stat(newName); err == nil {
		if flags&renameNoReplace != 0 {
			return syscall.EEXIST
		}
		if errno := r.replace(name, newName); errno != 0 {
			return errno
		}
	} else if err := r.fsys.Rename(name, newName); err != nil {
		return r.fail("rename", name, err)
	}

	if ch := r.GetChild(name); ch != nil {
		if n, ok := ch.Operations().(*fileNode); ok {
			n.setName(newName)
		}
	}
	return 0
}

// replace renames name over the existing newName. The target is parked under
// a temporary name first and restored if the rename fails, so a failed
// rename never loses it. r.mu must be held.
func (r *Root) replace(name, newName string) syscall.Errno {
	// Each rename writes a new header page before retiring the old one, so
	// one spare page keeps the whole sequence, restore included, feasible.
	u, err := r.fsys.Info()
	if err != nil {
		return r.fail("rename", newName, err)
	}
	if u.Free() < r.fsys.Geometry().LogPageSize {
		return syscall.ENOSPC
	}

	tmp, err := r.parkingName()
	if err != nil {
		return r.fail("rename", newName, err)
	}
	if err := r.fsys.Rename(newName, tmp); err != nil {
		return r.fail("rename", newName, err)
	}
	if err := r.fsys.Rename(name, newName); err != nil {
		if rerr := r.fsys.Rename(tmp, newName); rerr != nil {
			r.logger.Error("restoring rename target failed",
				slog.String("name", newName),
				slog.String("parked", tmp),
				slog.Any("error", rerr),
			)
		}
		return r.fail("rename", name, err)
	}
	if err := r.fsys.Remove(tmp); err != nil {
		r.logger.Warn("removing replaced file failed",
			slog.String("parked", tmp),
			slog.Any("error", err),
		)
	}
	return 0
}

// parkingName returns an unused name for a file being replaced.
func (r *Root) parkingName() (string, error) {
	for i := 0; ; i++ {
		tmp := fmt.Sprintf(".rename-%d", i)
		_, err := r.fsys.Stat(tmp)
		switch {
		case errors.Is(err, flashfs.ErrNotFound):
			return tmp, nil
		case err != nil:
			return "", err
		}
	}
}

// Statfs implements fs.NodeStatfser.
func (r *Root) Statfs(_ context.Context, out *fuse.StatfsOut) syscall.Errno {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.fsys.Info()
	if err != nil {
		return r.fail("statfs", "", err)
	}
	entries, err := r.fsys.List()
	if err != nil {
		return r.fail("statfs", "", err)
	}

	bsize := r.fsys.Geometry().LogPageSize
	out.Bsize = bsize
	out.Frsize = bsize
	out.Blocks = uint64(u.Total / bsize)
	out.Bfree = uint64(u.Free() / bsize)
	out.Bavail = out.Bfree
	out.Files = uint64(len(entries))
	out.NameLen = flashfs.MaxNameLen
	return 0
}
