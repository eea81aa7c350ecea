package blockfs

import "log/slog"

// FlushPolicy controls when metadata changes reach the device.
type FlushPolicy int

const (
	// FlushEager persists metadata synchronously on every structural
	// mutation: format, create, remove, close and unmount.
	FlushEager FlushPolicy = iota
	// FlushDeferred keeps Remove in memory until the next close, create,
	// Sync or Unmount. A crash in between leaves the removed file on disk.
	FlushDeferred
)

func (p FlushPolicy) String() string {
	switch p {
	case FlushEager:
		return "eager"
	case FlushDeferred:
		return "deferred"
	}
	return "unknown"
}

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	flushPolicy      FlushPolicy
}

// Option configures Format and Mount.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &blockfs.BasicMetricsCollector{}
//	fsys, _ := blockfs.Mount(ctx, dev, blockfs.WithMetricsCollector(metrics))
//	// ... use fsys ...
//	stats := metrics.GetStats()
//	fmt.Printf("writes: %d, bytes: %d\n", stats.Op("write").Count, stats.BytesWritten)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := blockfs.NewJSONLogger(slog.LevelInfo)
//	fsys, _ := blockfs.Mount(ctx, dev, blockfs.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFlushPolicy selects when metadata is written back.
func WithFlushPolicy(p FlushPolicy) Option {
	return func(o *options) {
		o.flushPolicy = p
	}
}

// WithDeferredFlush is shorthand for WithFlushPolicy(FlushDeferred).
func WithDeferredFlush() Option {
	return WithFlushPolicy(FlushDeferred)
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		flushPolicy:      FlushEager,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
