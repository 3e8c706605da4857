package core

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sioux/hsds-agent/internal/logging"
)

// Listener forwards create and write notifications for one directory
// (non-recursive) to an EventSink.
type Listener struct {
	dir     string
	sink    EventSink
	watcher *fsnotify.Watcher
	log     *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewListener installs an fsnotify watch on dir.
func NewListener(dir string, sink EventSink, logger *slog.Logger) (*Listener, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Listener{
		dir:     dir,
		sink:    sink,
		watcher: watcher,
		log:     logging.Component(logger, "listener").With("dir", dir),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

func (l *Listener) Dir() string {
	return l.dir
}

// Start launches the event loop.
func (l *Listener) Start() {
	l.startOnce.Do(func() {
		go l.loop()
	})
}

// Stop closes the watch and waits for the event loop to exit.
func (l *Listener) Stop() {
	l.Start()
	l.stopOnce.Do(func() {
		close(l.stop)
		l.watcher.Close()
	})
	<-l.done
}

func (l *Listener) loop() {
	defer close(l.done)
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("listener crashed, no more events for this directory until restart", "panic", r)
		}
	}()

	l.log.Info("started monitoring directory")
	for {
		select {
		case <-l.stop:
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			l.sink.Observe(Event{
				Path:  event.Name,
				Time:  time.Now(),
				IsDir: isDir(event.Name),
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.log.Warn("watcher error", "err", err)
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
