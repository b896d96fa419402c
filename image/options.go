package image

import "log/slog"

// Options configures Save and Load.
type Options struct {
	// Compression is the payload codec used by Save. Load reads it from the
	// header. Default: CompressionZSTD.
	Compression Compression

	// BytesPerSec limits device and blob traffic. Zero disables throttling.
	BytesPerSec int

	// ChunkSize is the unit of device reads and writes.
	// Default: 64 KiB.
	ChunkSize int

	// Concurrency bounds SaveAll and LoadAll. Zero means one worker per device.
	Concurrency int

	// Logger receives one record per image. Default: discard.
	Logger *slog.Logger
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZSTD,
		ChunkSize:   64 * 1024,
		Logger:      slog.New(slog.DiscardHandler),
	}
}

func applyOptions(optFns []func(*Options)) Options {
	o := DefaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultOptions().ChunkSize
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
