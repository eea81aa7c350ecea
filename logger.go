package blockfs

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with blockfs-specific helpers.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDevice adds a device label to the logger.
func (l *Logger) WithDevice(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("device", name),
	}
}

// LogFormat logs a format operation.
func (l *Logger) LogFormat(ctx context.Context, capacity int64, inodes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "format failed",
			"capacity", capacity,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "format completed",
			"capacity", capacity,
			"inodes", inodes,
		)
	}
}

// LogMount logs a mount or unmount.
func (l *Logger) LogMount(ctx context.Context, op string, inodes, used int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"inodes", inodes,
			"used", used,
		)
	}
}

// LogOp logs a file operation. fd is negative for name based operations.
func (l *Logger) LogOp(ctx context.Context, op, name string, fd FD, err error) {
	attrs := make([]any, 0, 6)
	if name != "" {
		attrs = append(attrs, "name", name)
	}
	if fd >= 0 {
		attrs = append(attrs, "fd", int(fd))
	}
	if err != nil {
		l.ErrorContext(ctx, op+" failed", append(attrs, "error", err)...)
	} else {
		l.DebugContext(ctx, op+" completed", attrs...)
	}
}

// LogIO logs the byte count of a read or write.
func (l *Logger) LogIO(ctx context.Context, op string, fd FD, requested, transferred int) {
	l.DebugContext(ctx, op,
		"fd", int(fd),
		"requested", requested,
		"bytes", transferred,
	)
}

// LogCheck logs an integrity check.
func (l *Logger) LogCheck(ctx context.Context, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "integrity check failed",
			"target", target,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "integrity check passed",
			"target", target,
		)
	}
}
