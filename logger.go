package tilestore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with tilestore-specific helpers.
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

// WithArray adds the array name to the logger.
func (l *Logger) WithArray(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("array", name),
	}
}

// LogCreateArray logs an array creation.
func (l *Logger) LogCreateArray(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create array failed",
			"array", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "array created",
			"array", name,
		)
	}
}

// LogWrite logs a write query submission.
func (l *Logger) LogWrite(ctx context.Context, array, fragment string, tiles, cells int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write query failed",
			"array", array,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fragment committed",
			"array", array,
			"fragment", fragment,
			"tiles", tiles,
			"cells", cells,
		)
	}
}

// LogRead logs a read query submission.
func (l *Logger) LogRead(ctx context.Context, array string, cells int, status QueryStatus, err error) {
	if err != nil && status != StatusIncomplete {
		l.ErrorContext(ctx, "read query failed",
			"array", array,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "read query returned",
			"array", array,
			"cells", cells,
			"status", status.String(),
		)
	}
}
