package flashfs

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/flashfs/blockdev"
	"github.com/hupe1980/flashfs/hal"
	"github.com/hupe1980/flashfs/internal/conv"
	"github.com/hupe1980/flashfs/internal/engine"
)

// FS is a mounted filesystem. It owns the device adapter, so the callbacks
// handed to the engine live exactly as long as the mount.
//
// FS is not safe for concurrent use.
type FS struct {
	geo     Geometry
	adapter *hal.Adapter
	eng     *engine.FS

	logger  *Logger
	metrics MetricsCollector
}

func newAdapter(dev blockdev.Device, o options) *hal.Adapter {
	return hal.NewAdapter(dev,
		hal.WithLogger(o.logger.Logger),
		hal.WithObserver(func(op blockdev.Op, size uint32, elapsed time.Duration, err error) {
			o.metricsCollector.RecordDevice(op.String(), int(size), elapsed, err)
		}),
	)
}

func engineConfig(geo Geometry, adapter *hal.Adapter, o options) engine.Config {
	return engine.Config{
		PhysSize:       geo.PhysSize,
		PhysAddr:       geo.PhysAddr,
		PhysEraseBlock: geo.PhysEraseBlock,
		LogPageSize:    geo.LogPageSize,
		LogBlockSize:   geo.LogBlockSize,
		MaxOpenFiles:   o.maxOpenFiles,
		Callbacks:      adapter.Callbacks(),
		Logger:         o.logger.Logger,
	}
}

func checkDevice(geo Geometry, dev blockdev.Device) error {
	if err := geo.Validate(); err != nil {
		return err
	}
	return geo.fits(dev)
}

// Mount mounts the filesystem stored on dev. An erased device mounts as an
// empty filesystem.
func Mount(geo Geometry, dev blockdev.Device, optFns ...Option) (*FS, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	start := time.Now()
	fs, err := mount(geo, dev, o)
	o.metricsCollector.RecordMount(time.Since(start), err)
	o.logger.LogMount(context.Background(), geo, err)

	return fs, err
}

func mount(geo Geometry, dev blockdev.Device, o options) (*FS, error) {
	if err := checkDevice(geo, dev); err != nil {
		return nil, err
	}
	if o.maxOpenFiles < 0 {
		return nil, fmt.Errorf("flashfs: max open files must not be negative, got %d", o.maxOpenFiles)
	}

	fs := &FS{
		geo:     geo,
		adapter: newAdapter(dev, o),
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	eng, st := engine.Mount(engineConfig(geo, fs.adapter, o))
	if st != hal.StatusOK {
		return nil, fs.translateStatus("mount", "", int32(st))
	}
	fs.eng = eng

	return fs, nil
}

// Format erases the area described by geo. A subsequent Mount sees an empty
// filesystem.
func Format(geo Geometry, dev blockdev.Device, optFns ...Option) error {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	err := format(geo, dev, o)
	o.logger.LogFormat(context.Background(), geo.PhysSize, err)
	return err
}

func format(geo Geometry, dev blockdev.Device, o options) error {
	if err := checkDevice(geo, dev); err != nil {
		return err
	}

	fs := &FS{geo: geo, adapter: newAdapter(dev, o)}
	st := engine.Format(engineConfig(geo, fs.adapter, o))
	return fs.translateStatus("format", "", int32(st))
}

// Unmount releases the engine. Every descriptor becomes invalid and every
// later call returns an error matching ErrNotMounted.
func (fs *FS) Unmount() error {
	err := fs.translateStatus("unmount", "", int32(fs.eng.Unmount()))
	fs.logger.LogUnmount(context.Background(), err)
	return err
}

// Geometry returns the geometry fs was mounted with.
func (fs *FS) Geometry() Geometry {
	return fs.geo
}

// Device returns the device fs is mounted on.
func (fs *FS) Device() blockdev.Device {
	return fs.adapter.Device()
}

// OpenFile opens path with the given flags and returns its descriptor.
func (fs *FS) OpenFile(path string, flags Flags) (FD, error) {
	start := time.Now()
	code := fs.eng.Open(path, engine.Flags(flags))
	err := fs.translateStatus("open", path, code)
	fs.metrics.RecordOpen(time.Since(start), err)
	fs.logger.LogOpen(context.Background(), path, flags, FD(code), err)

	if err != nil {
		return 0, err
	}
	return FD(code), nil
}

// Write writes p at the descriptor position. A write the engine stores only
// partially returns the stored count and a *ShortWriteError.
func (fs *FS) Write(fd FD, p []byte) (int, error) {
	start := time.Now()
	n, err := fs.write(fd, p)
	fs.metrics.RecordWrite(n, time.Since(start), err)
	return n, err
}

func (fs *FS) write(fd FD, p []byte) (int, error) {
	code := fs.eng.Write(int32(fd), p)
	if err := fs.translateStatus("write", "", code); err != nil {
		return 0, err
	}

	n := int(code)
	if n != len(p) {
		e := &ShortWriteError{Path: fs.pathOf(fd), Requested: len(p), Written: n}
		if st := fs.eng.ShortWriteStatus(); st != hal.StatusOK {
			e.cause = fs.translateStatus("write", e.Path, int32(st))
		} else if f := fs.adapter.TakeFailure(); f != nil {
			e.cause = f
		}
		return n, e
	}
	return n, nil
}

// Read returns up to count bytes from the descriptor position. At end of
// file it returns an empty slice.
func (fs *FS) Read(fd FD, count int) ([]byte, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}
	if left, ok := fs.remaining(fd); ok && int64(count) > left {
		count = int(left)
	}
	buf := make([]byte, count)
	n, err := fs.readInto(fd, buf)
	return buf[:n], err
}

// remaining returns the bytes between the descriptor position and end of
// file. ok is false when the descriptor cannot be inspected; the read that
// follows then reports why.
func (fs *FS) remaining(fd FD) (int64, bool) {
	var st engine.Stat
	if fs.eng.Fstat(int32(fd), &st) != hal.StatusOK {
		return 0, false
	}
	pos := fs.eng.Tell(int32(fd))
	if pos < 0 {
		return 0, false
	}
	return max(int64(st.Size)-int64(pos), 0), true
}

func (fs *FS) readInto(fd FD, p []byte) (int, error) {
	start := time.Now()
	code := fs.eng.Read(int32(fd), p)
	err := fs.translateStatus("read", "", code)

	n := 0
	if err == nil {
		n = int(code)
	}
	fs.metrics.RecordRead(n, time.Since(start), err)
	return n, err
}

// Seek moves the descriptor position and returns it. Seeking past the end
// clamps to the end and returns an error matching ErrEndOfObject.
func (fs *FS) Seek(fd FD, offset int64, whence Whence) (int64, error) {
	off, err := conv.Int64ToInt32(offset)
	if err != nil {
		return 0, fs.translateStatus("seek", "", int32(hal.StatusSeekBounds))
	}

	code := fs.eng.Lseek(int32(fd), off, int(whence))
	if err := fs.translateStatus("seek", "", code); err != nil {
		return 0, err
	}
	return int64(code), nil
}

// Tell returns the descriptor position.
func (fs *FS) Tell(fd FD) (int64, error) {
	code := fs.eng.Tell(int32(fd))
	if err := fs.translateStatus("tell", "", code); err != nil {
		return 0, err
	}
	return int64(code), nil
}

// Close releases fd.
func (fs *FS) Close(fd FD) error {
	err := fs.translateStatus("close", "", int32(fs.eng.Close(int32(fd))))
	if err != nil {
		fs.logger.WithFD(fd).Debug("close failed", "error", err)
	}
	return err
}

// Remove deletes path.
func (fs *FS) Remove(path string) error {
	start := time.Now()
	err := fs.translateStatus("remove", path, int32(fs.eng.Remove(path)))
	fs.metrics.RecordRemove(time.Since(start), err)
	fs.logger.LogRemove(context.Background(), path, err)
	return err
}

// Rename renames oldPath to newPath. newPath must not exist.
func (fs *FS) Rename(oldPath, newPath string) error {
	err := fs.translateStatus("rename", oldPath, int32(fs.eng.Rename(oldPath, newPath)))
	l := fs.logger.WithPath(oldPath)
	if err != nil {
		l.Debug("rename failed", "to", newPath, "error", err)
	} else {
		l.Debug("renamed", "to", newPath)
	}
	return err
}

// Stat returns the directory entry for path.
func (fs *FS) Stat(path string) (DirEntry, error) {
	var st engine.Stat
	if err := fs.translateStatus("stat", path, int32(fs.eng.Stat(path, &st))); err != nil {
		return DirEntry{}, err
	}
	return DirEntry{Name: st.Name, Size: st.Size, ID: uint32(st.ID)}, nil
}

// Fstat returns the directory entry for the object behind fd.
func (fs *FS) Fstat(fd FD) (DirEntry, error) {
	var st engine.Stat
	if err := fs.translateStatus("stat", "", int32(fs.eng.Fstat(int32(fd), &st))); err != nil {
		return DirEntry{}, err
	}
	return DirEntry{Name: st.Name, Size: st.Size, ID: uint32(st.ID)}, nil
}

// Usage reports filesystem capacity in bytes.
type Usage struct {
	Total uint32
	Used  uint32
}

// Free returns the bytes not in use.
func (u Usage) Free() uint32 {
	if u.Used > u.Total {
		return 0
	}
	return u.Total - u.Used
}

// Info returns the filesystem usage.
func (fs *FS) Info() (Usage, error) {
	total, used, st := fs.eng.Info()
	if err := fs.translateStatus("info", "", int32(st)); err != nil {
		return Usage{}, err
	}
	return Usage{Total: total, Used: used}, nil
}

// GCRuns returns how many blocks garbage collection has reclaimed since
// mount.
func (fs *FS) GCRuns() uint64 {
	return fs.eng.GCRuns()
}

func (fs *FS) pathOf(fd FD) string {
	var st engine.Stat
	if fs.eng.Fstat(int32(fd), &st) != hal.StatusOK {
		return ""
	}
	return st.Name
}
