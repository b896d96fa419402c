package flashfs

import "log/slog"

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	maxOpenFiles     int
}

// Option configures Mount and Format.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// WithLogger configures structured logging.
//
// If nil is passed, logging is disabled.
//
// Example:
//
//	fs, err := flashfs.Mount(geo, dev, flashfs.WithLogger(flashfs.NewJSONLogger(slog.LevelDebug)))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &flashfs.BasicMetricsCollector{}
//	fs, _ := flashfs.Mount(geo, dev, flashfs.WithMetricsCollector(metrics))
//	...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMaxOpenFiles sets the size of the descriptor table (default 4).
func WithMaxOpenFiles(n int) Option {
	return func(o *options) {
		o.maxOpenFiles = n
	}
}
