package phyalf

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with conversion-specific helpers.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDir adds the destination directory to every record.
func (l *Logger) WithDir(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dir", dir),
	}
}

// LogStage logs the completion of a conversion stage.
func (l *Logger) LogStage(ctx context.Context, stage Stage, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stage failed",
			"stage", stage,
			"duration", d,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "stage completed",
			"stage", stage,
			"duration", d,
		)
	}
}

// LogWrite logs a written output file.
func (l *Logger) LogWrite(ctx context.Context, path string, bytes int64) {
	l.DebugContext(ctx, "wrote file",
		"path", path,
		"bytes", bytes,
	)
}

// LogSkip logs an output that was not written.
func (l *Logger) LogSkip(ctx context.Context, path, reason string) {
	l.WarnContext(ctx, "skipping file",
		"path", path,
		"reason", reason,
	)
}

// LogPublish logs a blob upload.
func (l *Logger) LogPublish(ctx context.Context, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upload failed",
			"name", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "uploaded blob",
			"name", name,
			"bytes", bytes,
		)
	}
}
