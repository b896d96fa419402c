package flashfs

import (
	"errors"
	"io"

	"github.com/hupe1980/flashfs/hal"
)

// File is a byte stream over one descriptor of a mount.
type File struct {
	fs     *FS
	fd     FD
	name   string
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
	_ io.StringWriter    = (*File)(nil)
)

// Open opens path in the given mode. Append modes start at end of file.
func (fs *FS) Open(path string, mode OpenMode) (*File, error) {
	flags, ok := mode.flags()
	if !ok {
		_, err := ParseOpenMode(string(mode))
		return nil, err
	}

	fd, err := fs.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}

	if mode.seeksToEnd() {
		if _, err := fs.Seek(fd, 0, SeekEnd); err != nil {
			_ = fs.Close(fd)
			return nil, err
		}
	}

	return &File{fs: fs, fd: fd, name: path}, nil
}

// OpenString parses mode and opens path.
func (fs *FS) OpenString(path, mode string) (*File, error) {
	m, err := ParseOpenMode(mode)
	if err != nil {
		return nil, err
	}
	return fs.Open(path, m)
}

// WithFile opens path, calls fn and closes the file on every exit path,
// panics included. A close error is joined with the error of fn.
func (fs *FS) WithFile(path string, mode OpenMode, fn func(*File) error) (err error) {
	f, err := fs.Open(path, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return fn(f)
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.name }

// FD returns the underlying descriptor.
func (f *File) FD() FD { return f.fd }

// Read implements io.Reader. It returns io.EOF at end of file.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, f.closedError("read")
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := f.fs.readInto(f.fd, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadN returns up to count bytes. A negative count returns everything from
// the current position to the end of file.
func (f *File) ReadN(count int) ([]byte, error) {
	if f.closed {
		return nil, f.closedError("read")
	}
	if count >= 0 {
		return f.fs.Read(f.fd, count)
	}

	pos, err := f.fs.Tell(f.fd)
	if err != nil {
		return nil, err
	}
	end, err := f.fs.Seek(f.fd, 0, SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := f.fs.Seek(f.fd, pos, SeekSet); err != nil {
		return nil, err
	}

	buf := make([]byte, end-pos)
	n, err := io.ReadFull(f, buf)
	if err != nil {
		return buf[:n], err
	}
	return buf, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, f.closedError("write")
	}
	return f.fs.Write(f.fd, p)
}

// WriteString implements io.StringWriter.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Seek implements io.Seeker. Seeking past the end clamps to the end and
// returns an error matching ErrEndOfObject.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, f.closedError("seek")
	}
	return f.fs.Seek(f.fd, offset, Whence(whence))
}

// Tell returns the current position.
func (f *File) Tell() (int64, error) {
	if f.closed {
		return 0, f.closedError("tell")
	}
	return f.fs.Tell(f.fd)
}

// Stat returns the directory entry of the open file.
func (f *File) Stat() (DirEntry, error) {
	if f.closed {
		return DirEntry{}, f.closedError("stat")
	}
	return f.fs.Fstat(f.fd)
}

// Close releases the descriptor. Closing twice returns an error matching
// ErrFileClosed without reaching the engine.
func (f *File) Close() error {
	if f.closed {
		return f.closedError("close")
	}
	f.closed = true
	return f.fs.Close(f.fd)
}

func (f *File) closedError(op string) error {
	return &EngineError{Op: op, Path: f.name, Code: hal.StatusFileClosed, Symbol: hal.StatusFileClosed.Symbol()}
}
