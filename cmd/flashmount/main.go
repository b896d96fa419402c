package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/flashfs"
	"github.com/hupe1980/flashfs/blockdev"
	"github.com/hupe1980/flashfs/fusefs"
)

func main() {
	eraseBlock := flag.Uint("erase-block", 65536, "physical erase block size in bytes")
	pageSize := flag.Uint("page", 256, "logical page size in bytes")
	format := flag.Bool("format", false, "format the image before mounting")
	readOnly := flag.Bool("ro", false, "mount read-only")
	debug := flag.Bool("debug", false, "print FUSE debug information")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Printf("Usage:\n  flashmount [options] <flash image path> <mount point>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1), uint32(*eraseBlock), uint32(*pageSize), *format, *readOnly, *debug); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
}

func run(imagePath, mountPoint string, eraseBlock, pageSize uint32, format, readOnly, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := flashfs.NewTextLogger(level)

	dev, err := blockdev.OpenFile(imagePath, eraseBlock)
	if err != nil {
		return err
	}
	defer dev.Close()

	geo := flashfs.Geometry{
		PhysSize:       dev.Size(),
		PhysEraseBlock: eraseBlock,
		LogPageSize:    pageSize,
		LogBlockSize:   eraseBlock,
	}
	if format {
		if err := flashfs.Format(geo, dev, flashfs.WithLogger(logger)); err != nil {
			return err
		}
	}

	fs, err := flashfs.Mount(geo, dev, flashfs.WithLogger(logger))
	if err != nil {
		return err
	}
	defer fs.Unmount()

	server, err := fusefs.Serve(mountPoint, fs, fusefs.Options{
		ReadOnly: readOnly,
		Debug:    debug,
		Logger:   logger.Logger,
	})
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("unmounting", "mountpoint", mountPoint)
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "error", err)
		}
	}()

	server.Wait()

	return dev.Sync()
}
