package appctx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured, scope-aware logging.
type Logger struct {
	slog *slog.Logger
}

// NewLogger creates a Logger that writes JSON to stdout.
func NewLogger() *Logger {
	return &Logger{
		slog: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
}

// NewLoggerWithHandler creates a Logger on top of handler.
// If handler is nil, uses a JSON handler to stdout.
func NewLoggerWithHandler(handler slog.Handler) *Logger {
	if handler == nil {
		return NewLogger()
	}
	return &Logger{slog: slog.New(handler)}
}

// Discard creates a Logger that drops everything.
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// With returns a new Logger with the given key-value pairs attached to every log entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// LogEnter logs a frame push.
func (l *Logger) LogEnter(ctx context.Context, frameID string, depth int) {
	l.slog.DebugContext(ctx, "scope entered",
		"frame", frameID,
		"depth", depth,
	)
}

// LogExit logs a frame pop.
func (l *Logger) LogExit(ctx context.Context, frameID string, resources int, err error) {
	if err != nil {
		l.slog.WarnContext(ctx, "scope exited with errors",
			"frame", frameID,
			"resources", resources,
			"error", err,
		)
		return
	}
	l.slog.DebugContext(ctx, "scope exited",
		"frame", frameID,
		"resources", resources,
	)
}

// LogResolve logs a resource materialization.
func (l *Logger) LogResolve(ctx context.Context, frameID, name string, took time.Duration, err error) {
	if err != nil {
		l.slog.ErrorContext(ctx, "resource factory failed",
			"frame", frameID,
			"resource", name,
			"error", err,
		)
		return
	}
	l.slog.DebugContext(ctx, "resource created",
		"frame", frameID,
		"resource", name,
		"took", took,
	)
}

// LogTeardown logs a failed teardown.
func (l *Logger) LogTeardown(ctx context.Context, frameID, name string, err error) {
	l.slog.WarnContext(ctx, "resource teardown failed",
		"frame", frameID,
		"resource", name,
		"error", err,
	)
}
