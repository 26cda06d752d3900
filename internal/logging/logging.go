// Package logging configures the process-wide slog logger: human readable
// text on stderr, plus optional JSON lines in a rotated file.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Brownie44l1/anidex/internal/conf"
)

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	base     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
)

// Init configures the global logger from settings. The returned closer
// flushes and closes the log file, if any.
func Init(settings conf.LogSettings, debug bool) (io.Closer, error) {
	level := ParseLevel(settings.Level)
	if debug {
		level = slog.LevelDebug
	}
	levelVar.Set(level)

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}),
	}

	var closer io.Closer = nopCloser{}
	if settings.File.Enabled && settings.File.Path != "" {
		if err := os.MkdirAll(filepath.Dir(settings.File.Path), 0o755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   settings.File.Path,
			MaxSize:    settings.File.MaxSize,
			MaxBackups: settings.File.MaxBackups,
			MaxAge:     settings.File.MaxAge,
			Compress:   settings.File.Compress,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: levelVar}))
		closer = rotator
	}

	logger := slog.New(fanout(handlers))
	mu.Lock()
	base = logger
	mu.Unlock()
	slog.SetDefault(logger)

	return closer, nil
}

// SetOutput points the global logger at w. Used by tests and the CLI.
func SetOutput(w io.Writer, level slog.Level) {
	levelVar.Set(level)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
	mu.Lock()
	base = logger
	mu.Unlock()
}

// Default returns the current global logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// ForService returns a logger tagged with the service name.
func ForService(name string) *slog.Logger {
	return Default().With("service", name)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanoutHandler duplicates records to several handlers.
type fanoutHandler []slog.Handler

func fanout(hs []slog.Handler) slog.Handler {
	if len(hs) == 1 {
		return hs[0]
	}
	return fanoutHandler(hs)
}

func (f fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
