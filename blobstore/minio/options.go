package minio

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every blob name.
	Prefix string

	// PartSize is the multipart part size for streaming uploads. Zero lets
	// the client choose.
	PartSize uint64

	// Concurrency is the number of parts uploaded in parallel.
	// Default: 4
	Concurrency uint

	// Metadata is attached to every uploaded image as user metadata.
	Metadata map[string]string

	// DisablePinning turns off ETag matching on reads.
	DisablePinning bool
}

// DefaultOptions returns the default store settings.
func DefaultOptions() Options {
	return Options{Concurrency: 4}
}

// Option configures a Store.
type Option func(*Options)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithPartSize sets the multipart part size.
func WithPartSize(n uint64) Option {
	return func(o *Options) { o.PartSize = n }
}

// WithConcurrency sets the number of parallel part uploads.
func WithConcurrency(n uint) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithMetadata attaches user metadata to uploads.
func WithMetadata(md map[string]string) Option {
	return func(o *Options) { o.Metadata = md }
}

func applyOptions(optFns []Option) Options {
	o := DefaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if o.Concurrency == 0 {
		o.Concurrency = 1
	}
	return o
}
