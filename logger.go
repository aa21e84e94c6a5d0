package hyperhist

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with histogram-specific fields.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithName adds the stored histogram name.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{Logger: l.Logger.With("name", name)}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{Logger: l.Logger.With("dimension", dim)}
}

// WithBins adds a bin count field to the logger.
func (l *Logger) WithBins(bins int) *Logger {
	return &Logger{Logger: l.Logger.With("bins", bins)}
}

// LogFill logs a batch fill.
func (l *Logger) LogFill(ctx context.Context, count, overflow int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "fill failed", "count", count, "error", err)
	case overflow > 0:
		l.DebugContext(ctx, "fill completed with overflow", "count", count, "overflow", overflow)
	default:
		l.DebugContext(ctx, "fill completed", "count", count)
	}
}

// LogMerge logs a merge of two histograms.
func (l *Logger) LogMerge(ctx context.Context, bins, added int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed", "bins", bins, "error", err)
		return
	}
	l.DebugContext(ctx, "merge completed", "bins", bins, "added", added)
}

// LogCompaction logs one compaction pass.
func (l *Logger) LogCompaction(ctx context.Context, pass, before, after int) {
	l.DebugContext(ctx, "compaction pass",
		"pass", pass,
		"bins_before", before,
		"bins_after", after,
	)
}

// LogCompacted logs the end of a compaction.
func (l *Logger) LogCompacted(ctx context.Context, removed, passes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed", "passes", passes, "error", err)
		return
	}
	l.InfoContext(ctx, "compaction completed", "removed_bins", removed, "passes", passes)
}

// LogSave logs a save to a store.
func (l *Logger) LogSave(ctx context.Context, name, generation string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed", "name", name, "error", err)
		return
	}
	l.InfoContext(ctx, "histogram saved", "name", name, "generation", generation)
}

// LogLoad logs a load from a store.
func (l *Logger) LogLoad(ctx context.Context, name string, residency string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "name", name, "error", err)
		return
	}
	l.InfoContext(ctx, "histogram loaded", "name", name, "residency", residency)
}
