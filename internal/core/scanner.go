package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/sioux/hsds-agent/internal/logging"
)

// Scanner performs the one-shot startup pass over files that already exist
// in the watched directories. Each candidate is checked serially: its size
// and mtime are read, the scanner sleeps for the settle window, and the file
// is queued only if both values are unchanged. Files still changing are left
// for a later live event or the next start.
type Scanner struct {
	fs     afero.Fs
	suffix string
	settle time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	log    *slog.Logger
}

type ScannerOption func(*Scanner)

// WithSleep replaces the settle-window wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ScannerOption {
	return func(s *Scanner) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

func NewScanner(fs afero.Fs, suffix string, settle time.Duration, logger *slog.Logger, opts ...ScannerOption) *Scanner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	s := &Scanner{
		fs:     fs,
		suffix: strings.ToLower(suffix),
		settle: settle,
		sleep:  sleepCtx,
		log:    logging.Component(logger, "scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks the immediate children of each directory and passes stable
// candidates to enqueue. It returns how many files were queued.
func (s *Scanner) Scan(ctx context.Context, dirs []string, enqueue func(path string)) int {
	queued := 0
	for _, dir := range dirs {
		entries, err := afero.ReadDir(s.fs, dir)
		if err != nil {
			s.log.Error("cannot list directory", "dir", dir, "err", err)
			continue
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				s.log.Info("startup scan interrupted", "queued", queued)
				return queued
			}
			if entry.IsDir() || !matchesSuffix(entry.Name(), s.suffix) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			s.log.Info("found existing file, checking stability", "path", path, "size", humanize.Bytes(uint64(entry.Size())))

			stable, err := s.IsStable(ctx, path)
			switch {
			case err != nil:
				s.log.Warn("stability check failed", "path", path, "err", err)
			case stable:
				s.log.Info("file is stable, queueing upload", "path", path)
				enqueue(path)
				queued++
			default:
				s.log.Info("file is not stable yet, skipping for now", "path", path)
			}
		}
	}
	return queued
}

// IsStable reports whether path keeps the same size and mtime across the
// settle window.
func (s *Scanner) IsStable(ctx context.Context, path string) (bool, error) {
	before, err := s.fs.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat before settle window: %w", err)
	}
	// Some afero backends return a live view, so copy the values now.
	size, mtime := before.Size(), before.ModTime()

	if err := s.sleep(ctx, s.settle); err != nil {
		return false, err
	}

	after, err := s.fs.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat after settle window: %w", err)
	}

	return after.Size() == size && after.ModTime().Equal(mtime), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
