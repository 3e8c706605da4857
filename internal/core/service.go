// Package core implements the ingestion pipeline: live debouncing of
// filesystem events, the startup settle scan, the single-worker upload queue
// and the upload state machine, composed by Service.
package core

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/sioux/hsds-agent/internal/config"
	"github.com/sioux/hsds-agent/internal/logging"
)

// Heartbeat is a background loop with signal-then-join shutdown.
type Heartbeat interface {
	Start()
	Stop()
}

// Service owns the watched directories and the lifecycle of every long-lived
// goroutine of the agent.
type Service struct {
	cfg      config.Config
	fs       afero.Fs
	root     *slog.Logger
	log      *slog.Logger
	heart    Heartbeat
	drainFor time.Duration

	scannerOpts []ScannerOption
	trackerOpts []TrackerOption

	queue    *Queue
	pipeline *Pipeline
	worker   *Worker
	tracker  *Tracker
	scanner  *Scanner

	mu        sync.Mutex
	dirs      []string
	listeners []*Listener
	started   bool
	stopped   bool
}

type ServiceOption func(*Service)

// WithFs replaces the filesystem used for directory checks and the startup
// scan.
func WithFs(fs afero.Fs) ServiceOption {
	return func(s *Service) { s.fs = fs }
}

// WithHeartbeat attaches a background health loop started and stopped with
// the service.
func WithHeartbeat(h Heartbeat) ServiceOption {
	return func(s *Service) { s.heart = h }
}

// WithDrainTimeout bounds how long Run waits for queued uploads on shutdown.
func WithDrainTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.drainFor = d }
}

// WithScannerOptions passes options through to the startup scanner.
func WithScannerOptions(opts ...ScannerOption) ServiceOption {
	return func(s *Service) { s.scannerOpts = append(s.scannerOpts, opts...) }
}

// WithTrackerOptions passes options through to the stability tracker.
func WithTrackerOptions(opts ...TrackerOption) ServiceOption {
	return func(s *Service) { s.trackerOpts = append(s.trackerOpts, opts...) }
}

func NewService(cfg config.Config, store Store, recorder Recorder, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		root:     logger,
		log:      logging.Component(logger, "service"),
		drainFor: 30 * time.Second,
	}
	s.queue = NewQueue(logger)
	s.pipeline = NewPipeline(store, recorder, logger)
	s.worker = NewWorker(s.queue, s.pipeline, logger)

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.scanner = NewScanner(s.fs, cfg.Suffix, cfg.SettleWindow, logger, s.scannerOpts...)
	trackerOpts := append([]TrackerOption{WithTickInterval(cfg.TickInterval)}, s.trackerOpts...)
	s.tracker = NewTracker(cfg.DebounceInterval, cfg.Suffix, s.queue.Put, logger, trackerOpts...)
	return s
}

// Queue exposes the upload queue, mainly for tests and diagnostics.
func (s *Service) Queue() *Queue { return s.queue }

// Tracker exposes the stability tracker.
func (s *Service) Tracker() *Tracker { return s.tracker }

// WatchedDirs returns the directories being watched in this run.
func (s *Service) WatchedDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dirs...)
}

// Start brings the agent up: worker, startup scan, tracker, one listener per
// directory, heartbeat. The startup scan runs synchronously before any live
// watch is installed.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	dirs := s.existingDirs(s.cfg.WatchDirs)
	if len(dirs) == 0 {
		s.log.Warn("no directories to watch, idling")
	}

	// Uploads outlive ctx so queued files can drain; Stop bounds the drain.
	s.worker.Start(context.WithoutCancel(ctx))

	queued := s.scanner.Scan(ctx, dirs, s.queue.Put)
	s.log.Info("startup scan complete", "dirs", len(dirs), "queued", queued)

	s.tracker.Start()

	var listeners []*Listener
	var watched []string
	for _, dir := range dirs {
		l, err := NewListener(dir, s.tracker, s.root)
		if err != nil {
			s.log.Error("cannot watch directory", "dir", dir, "err", err)
			continue
		}
		l.Start()
		listeners = append(listeners, l)
		watched = append(watched, dir)
	}

	if s.heart != nil {
		s.heart.Start()
	}

	s.mu.Lock()
	s.dirs = watched
	s.listeners = listeners
	s.mu.Unlock()

	s.log.Info("agent running", "watching", watched, "suffix", s.cfg.Suffix, "debounce", s.cfg.DebounceInterval)
}

// Stop tears everything down in reverse order: listeners, tracker,
// heartbeat, then the worker drains the queue. ctx bounds the drain.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l.Stop()
	}
	if pending := s.tracker.Pending(); pending > 0 {
		s.log.Warn("dropping files that never became stable", "pending", pending)
	}
	s.tracker.Stop()
	if s.heart != nil {
		s.heart.Stop()
	}
	s.worker.Stop(ctx)
	s.log.Info("agent stopped")
}

// Run starts the service and blocks until ctx ends, then stops it.
func (s *Service) Run(ctx context.Context) {
	s.Start(ctx)
	<-ctx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), s.drainFor)
	defer cancel()
	s.Stop(drainCtx)
}

func (s *Service) existingDirs(dirs []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true

		info, err := s.fs.Stat(dir)
		switch {
		case os.IsNotExist(err):
			s.log.Error("directory does not exist, skipping", "dir", dir)
		case err != nil:
			s.log.Error("cannot access directory, skipping", "dir", dir, "err", err)
		case !info.IsDir():
			s.log.Error("not a directory, skipping", "dir", dir)
		default:
			out = append(out, dir)
		}
	}
	return out
}
