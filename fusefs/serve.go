package fusefs

import (
	"log/slog"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hupe1980/flashfs"
)

// Options configures Serve.
type Options struct {
	// ReadOnly rejects every modifying call with EROFS.
	ReadOnly bool
	// Debug prints FUSE protocol traffic.
	Debug bool
	// AllowOther lets other users access the mount.
	AllowOther bool
	// Logger receives failed operations at debug level. Default: discard.
	Logger *slog.Logger
}

// Serve mounts fsys at mountpoint. The caller waits on the returned server
// and unmounts it; fsys must stay mounted until then.
func Serve(mountpoint string, fsys *flashfs.FS, opts Options) (*fuse.Server, error) {
	root := NewRoot(fsys, opts)

	mo := fuse.MountOptions{
		FsName:     "flashfs",
		Name:       "flashfs",
		Debug:      opts.Debug,
		AllowOther: opts.AllowOther,
	}
	if opts.ReadOnly {
		mo.Options = append(mo.Options, "ro")
	}

	server, err := fs.Mount(mountpoint, root, &fs.Options{MountOptions: mo})
	if err != nil {
		return nil, err
	}
	root.logger.Info("fuse mounted", slog.String("mountpoint", mountpoint), slog.Bool("read_only", opts.ReadOnly))
	return server, nil
}
