package core

import (
	"log/slog"
	"sync"

	"github.com/sioux/hsds-agent/internal/logging"
)

type queueItem struct {
	path     string
	sentinel bool
}

// Queue is an unbounded FIFO of paths with many producers and one consumer.
// Duplicates are kept; the existence check downstream makes them harmless.
//
// Shutdown appends a sentinel. Everything queued ahead of it is still handed
// out; once the consumer reaches it, Get reports closed forever and anything
// queued behind it is never returned.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []queueItem
	closed bool
	log    *slog.Logger
}

func NewQueue(logger *slog.Logger) *Queue {
	q := &Queue{log: logging.Component(logger, "queue")}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends path and wakes the consumer.
func (q *Queue) Put(path string) {
	q.mu.Lock()
	q.items = append(q.items, queueItem{path: path})
	n := len(q.items)
	q.mu.Unlock()
	q.cond.Signal()

	q.log.Debug("enqueued", "path", path, "queueLen", n)
}

// Shutdown appends the stop sentinel.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.items = append(q.items, queueItem{sentinel: true})
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Get blocks until an entry is available. It returns ("", false) once the
// sentinel has been reached.
func (q *Queue) Get() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return "", false
	}

	item := q.items[0]
	q.items[0] = queueItem{}
	q.items = q.items[1:]
	if item.sentinel {
		q.closed = true
		q.cond.Broadcast()
		return "", false
	}
	return item.path, true
}

// Len returns the number of entries waiting, sentinel included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
