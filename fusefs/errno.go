package fusefs

import (
	"errors"
	"syscall"

	"github.com/hupe1980/flashfs"
)

func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flashfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, flashfs.ErrFileExists), errors.Is(err, flashfs.ErrConflictingName):
		return syscall.EEXIST
	case errors.Is(err, flashfs.ErrFull):
		return syscall.ENOSPC
	case errors.Is(err, flashfs.ErrOutOfFileDescriptors):
		return syscall.EMFILE
	case errors.Is(err, flashfs.ErrNameTooLong):
		return syscall.ENAMETOOLONG
	case errors.Is(err, flashfs.ErrNotWritable), errors.Is(err, flashfs.ErrNotReadable),
		errors.Is(err, flashfs.ErrBadDescriptor), errors.Is(err, flashfs.ErrFileClosed):
		return syscall.EBADF
	case errors.Is(err, flashfs.ErrFileDeleted):
		return syscall.ESTALE
	case errors.Is(err, flashfs.ErrSeekBounds), errors.Is(err, flashfs.ErrEndOfObject):
		return syscall.EINVAL
	case errors.Is(err, flashfs.ErrNotMounted):
		return syscall.ENODEV
	default:
		return syscall.EIO
	}
}

// openFlags converts open(2) flags.
func openFlags(flags uint32) flashfs.Flags {
	var f flashfs.Flags
	switch int(flags) & syscall.O_ACCMODE {
	case syscall.O_RDONLY:
		f = flashfs.RdOnly
	case syscall.O_WRONLY:
		f = flashfs.WrOnly
	default:
		f = flashfs.RdWr
	}

	if flags&syscall.O_APPEND != 0 {
		f |= flashfs.Append
	}
	if flags&syscall.O_TRUNC != 0 {
		f |= flashfs.Trunc
	}
	if flags&syscall.O_CREAT != 0 {
		f |= flashfs.Creat
	}
	if flags&syscall.O_EXCL != 0 {
		f |= flashfs.Excl
	}
	return f
}
