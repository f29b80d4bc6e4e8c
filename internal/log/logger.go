package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Options configures NewLogger.
type Options struct {
	// Writer receives console output, typically os.Stderr.
	Writer io.Writer

	// Verbose lowers the console level from Warn to Debug.
	Verbose bool

	// JSON switches the console format from text to JSON.
	JSON bool

	// File, when set, is an activity log that receives every record at
	// Info level or above in text format. It is appended to across runs.
	File string
}

// NewLogger builds a sanitizing logger from opts. The returned Closer
// releases the activity log file and must be called when logging ends.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var console slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if opts.JSON {
		console = slog.NewJSONHandler(w, handlerOpts)
	}

	if opts.File == "" {
		return slog.New(NewSecureHandler(console)), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // user-configured log path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	activity := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})

	return slog.New(NewSecureHandler(fanout{console, activity})), f, nil
}

// NewSecureLogger creates a sanitizing text logger writing to w at Warn
// level, or Debug when verbose is set.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	logger, _, _ := NewLogger(Options{Writer: w, Verbose: verbose}) //nolint:errcheck // no file, cannot fail
	return logger
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
