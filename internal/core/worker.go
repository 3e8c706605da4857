package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sioux/hsds-agent/internal/logging"
)

// Worker is the single consumer of the upload queue. It runs one pipeline at
// a time, so every remote mutation from this process is serialized.
type Worker struct {
	queue    *Queue
	pipeline *Pipeline
	log      *slog.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewWorker(queue *Queue, pipeline *Pipeline, logger *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		pipeline: pipeline,
		log:      logging.Component(logger, "worker"),
		done:     make(chan struct{}),
	}
}

// Start launches the consumer loop. ctx bounds the external tool calls; it
// does not stop the loop, Stop does.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		w.cancel = cancel
		go w.loop(runCtx)
	})
}

// Stop queues the sentinel and waits until everything queued before it has
// been processed. If ctx ends first, the in-flight tool call is cancelled and
// Stop waits for the loop to unwind.
func (w *Worker) Stop(ctx context.Context) {
	w.Start(context.Background())
	w.queue.Shutdown()

	select {
	case <-w.done:
	case <-ctx.Done():
		w.log.Warn("drain deadline reached, aborting in-flight upload", "remaining", w.queue.Len())
		w.cancel()
		<-w.done
	}
	w.cancel()
}

// Done is closed when the loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	w.log.Info("upload worker started")

	for {
		path, ok := w.queue.Get()
		if !ok {
			w.log.Info("upload worker stopped")
			return
		}
		if ctx.Err() != nil {
			w.log.Warn("worker aborted, leaving file for the next start", "path", path)
			continue
		}
		w.processOne(ctx, path)
	}
}

func (w *Worker) processOne(ctx context.Context, path string) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("pipeline panicked", "path", path, "panic", r)
		}
	}()
	w.log.Debug("queue pop", "path", path, "queueLen", w.queue.Len())
	w.pipeline.Process(ctx, path, false)
}
