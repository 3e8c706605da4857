// Package logging builds the agent's structured logger.
//
// Console output is always on: INFO goes to stdout, WARN and ERROR to stderr.
// When a log directory is configured, every record at or above the configured
// level is also written to a size-rotated agent.log in that directory.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Dir     string
	Level   string
	Console bool
	// Stdout and Stderr override the console streams. Tests use them.
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a logger and a close function releasing the log file.
func New(opts Options) (*slog.Logger, func() error) {
	level := ParseLevel(opts.Level)
	var handlers []slog.Handler

	if opts.Console {
		stdout, stderr := opts.Stdout, opts.Stderr
		if stdout == nil {
			stdout = os.Stdout
		}
		if stderr == nil {
			stderr = os.Stderr
		}
		handlers = append(handlers, &consoleHandler{
			level:  level,
			stdout: slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level}),
			stderr: slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
		})
	}

	closer := func() error { return nil }
	var dirErr error
	if opts.Dir != "" {
		if dirErr = os.MkdirAll(opts.Dir, 0755); dirErr == nil {
			file := &lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, "agent.log"),
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
			}
			handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
			closer = file.Close
		} else if !opts.Console {
			// Without console or file every record would be lost.
			stderr := opts.Stderr
			if stderr == nil {
				stderr = os.Stderr
			}
			handlers = append(handlers, slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
		}
	}

	if len(handlers) == 0 {
		return Discard(), closer
	}
	logger := slog.New(&multiHandler{handlers: handlers})
	if dirErr != nil {
		logger.Warn("log directory unavailable, file logging disabled", "dir", opts.Dir, "err", dirErr)
	}
	return logger, closer
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component returns a child of l tagged with the component name, or a
// discarding logger when l is nil.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("comp", name)
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// consoleHandler routes INFO and below to stdout, WARN and above to stderr.
type consoleHandler struct {
	level  slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderr.Handle(ctx, r)
	}
	return h.stdout.Handle(ctx, r)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{level: h.level, stdout: h.stdout.WithAttrs(attrs), stderr: h.stderr.WithAttrs(attrs)}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return &consoleHandler{level: h.level, stdout: h.stdout.WithGroup(name), stderr: h.stderr.WithGroup(name)}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}
