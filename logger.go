package flashfs

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with flashfs-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithFD adds a descriptor field to the logger.
func (l *Logger) WithFD(fd FD) *Logger {
	return &Logger{
		Logger: l.Logger.With("fd", int32(fd)),
	}
}

// LogMount logs a mount.
func (l *Logger) LogMount(ctx context.Context, geo Geometry, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mount failed",
			"size", geo.PhysSize,
			"addr", geo.PhysAddr,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "mounted",
			"size", geo.PhysSize,
			"addr", geo.PhysAddr,
			"erase_block", geo.PhysEraseBlock,
			"page", geo.LogPageSize,
			"block", geo.LogBlockSize,
		)
	}
}

// LogUnmount logs an unmount.
func (l *Logger) LogUnmount(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "unmount failed", "error", err)
	} else {
		l.InfoContext(ctx, "unmounted")
	}
}

// LogFormat logs a format.
func (l *Logger) LogFormat(ctx context.Context, size uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "format failed",
			"size", size,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "formatted",
			"size", size,
		)
	}
}

// LogOpen logs an open.
func (l *Logger) LogOpen(ctx context.Context, path string, flags Flags, fd FD, err error) {
	if err != nil {
		l.DebugContext(ctx, "open failed",
			"path", path,
			"flags", flags.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "opened",
			"path", path,
			"flags", flags.String(),
			"fd", int32(fd),
		)
	}
}

// LogRemove logs a remove.
func (l *Logger) LogRemove(ctx context.Context, path string, err error) {
	if err != nil {
		l.DebugContext(ctx, "remove failed",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "removed",
			"path", path,
		)
	}
}
