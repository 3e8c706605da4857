package core

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sioux/hsds-agent/internal/logging"
)

// Event is one raw filesystem notification for a path.
type Event struct {
	Path  string
	Time  time.Time
	IsDir bool
}

// EventSink receives raw notifications. Implementations must be safe for
// concurrent use by several listeners.
type EventSink interface {
	Observe(ev Event) bool
}

// Tracker debounces write activity per path. Each matching event records the
// time it was seen; a background ticker promotes every path that has been
// quiet for at least the debounce interval and hands it to emit exactly once.
// A later event for a promoted path starts a new pending entry.
//
// The pending map has no upper bound: a file that never stops changing stays
// pending for as long as it keeps changing.
type Tracker struct {
	interval time.Duration
	tick     time.Duration
	suffix   string
	emit     func(path string)
	now      func() time.Time
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

type TrackerOption func(*Tracker)

// WithTickInterval sets how often the pending map is scanned (default 1s).
func WithTickInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.tick = d
		}
	}
}

// WithClock replaces time.Now for promotion decisions.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(interval time.Duration, suffix string, emit func(path string), logger *slog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		interval: interval,
		tick:     time.Second,
		suffix:   strings.ToLower(suffix),
		emit:     emit,
		now:      time.Now,
		log:      logging.Component(logger, "tracker"),
		pending:  make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Matches reports whether path carries the tracked suffix, ignoring case.
func (t *Tracker) Matches(path string) bool {
	return matchesSuffix(path, t.suffix)
}

// Observe records an event. It returns false when the event was ignored
// (directory or foreign suffix).
func (t *Tracker) Observe(ev Event) bool {
	if ev.IsDir || !t.Matches(ev.Path) {
		return false
	}
	if ev.Time.IsZero() {
		ev.Time = t.now()
	}

	t.mu.Lock()
	_, known := t.pending[ev.Path]
	t.pending[ev.Path] = ev.Time
	size := len(t.pending)
	t.mu.Unlock()

	if known {
		t.log.Debug("pending file touched", "path", ev.Path)
	} else {
		t.log.Info("detected file", "path", ev.Path, "pending", size)
	}
	return true
}

// Pending returns the number of paths waiting to become stable.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Start launches the promotion ticker.
func (t *Tracker) Start() {
	t.startOnce.Do(func() {
		go t.loop()
	})
}

// Stop signals the ticker and waits for it to exit. Paths still pending are
// dropped.
func (t *Tracker) Stop() {
	t.Start()
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Tracker) loop() {
	defer close(t.done)

	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.scan()
		case <-t.stop:
			return
		}
	}
}

func (t *Tracker) scan() {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("promotion scan panicked", "panic", r)
		}
	}()
	for _, path := range t.promoteDue(t.now()) {
		t.log.Info("file is stable, queueing upload", "path", path, "quiet", t.interval)
		t.emit(path)
	}
}

// promoteDue removes and returns every path quiet for at least the debounce
// interval as of now, oldest first.
func (t *Tracker) promoteDue(now time.Time) []string {
	type due struct {
		path string
		last time.Time
	}

	t.mu.Lock()
	var ready []due
	for path, last := range t.pending {
		if now.Sub(last) >= t.interval {
			ready = append(ready, due{path, last})
			delete(t.pending, path)
		}
	}
	t.mu.Unlock()

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].last.Equal(ready[j].last) {
			return ready[i].path < ready[j].path
		}
		return ready[i].last.Before(ready[j].last)
	})
	paths := make([]string, len(ready))
	for i, d := range ready {
		paths[i] = d.path
	}
	return paths
}

func matchesSuffix(path, lowerSuffix string) bool {
	return strings.HasSuffix(strings.ToLower(filepath.Base(path)), lowerSuffix)
}
