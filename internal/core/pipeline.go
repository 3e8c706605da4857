package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sioux/hsds-agent/internal/hsds"
	"github.com/sioux/hsds-agent/internal/logging"
)

// Status is the terminal state of one pipeline run.
type Status string

const (
	StatusSkippedExists Status = "skipped-exists"
	StatusUploaded      Status = "uploaded"
	StatusRepaired      Status = "repaired-and-uploaded"
	StatusFailed        Status = "failed"
)

// Outcome describes one pipeline run for one local file.
type Outcome struct {
	ID       string
	Path     string
	Domain   string
	Status   Status
	Attempts int // upload attempts, 0 when skipped
	Err      error
	Started  time.Time
	Finished time.Time
}

// Store is the remote side of the pipeline. hsds.Client implements it.
type Store interface {
	Domain(localPath string) string
	Exists(ctx context.Context, domain string) bool
	Upload(ctx context.Context, localPath, domain string) error
	Repair(ctx context.Context, localPath string) error
}

// Recorder persists outcomes. Recording is best effort.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Pipeline uploads one file at most once per run:
//
//	checking-existence -> exists (skip)
//	                   -> uploading -> success
//	                                -> failed (inconsistent) -> repairing -> uploading -> success | failed
//	                                -> failed (other)
//
// A failed file is not re-queued.
type Pipeline struct {
	store    Store
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time
}

func NewPipeline(store Store, recorder Recorder, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		recorder: recorder,
		log:      logging.Component(logger, "pipeline"),
		now:      time.Now,
	}
}

// Process runs the pipeline for localPath. With force set the existence check
// is skipped and the domain is overwritten.
func (p *Pipeline) Process(ctx context.Context, localPath string, force bool) Outcome {
	o := Outcome{
		ID:      uuid.NewString(),
		Path:    localPath,
		Domain:  p.store.Domain(localPath),
		Started: p.now(),
	}
	l := p.log.With("run", o.ID, "path", o.Path, "domain", o.Domain)

	if !force && p.store.Exists(ctx, o.Domain) {
		o.Status = StatusSkippedExists
		return p.finish(ctx, l, o)
	}

	l.Info("uploading")
	o.Attempts = 1
	err := p.store.Upload(ctx, localPath, o.Domain)
	if err == nil {
		o.Status = StatusUploaded
		return p.finish(ctx, l, o)
	}

	if !hsds.IsTransient(err) {
		o.Status = StatusFailed
		o.Err = err
		return p.finish(ctx, l, o)
	}

	l.Warn("file is inconsistent, repairing before retry", "err", err)
	if rerr := p.store.Repair(ctx, localPath); rerr != nil {
		l.Warn("repair reported an error, retrying anyway", "err", rerr)
	}

	o.Attempts = 2
	if err := p.store.Upload(ctx, localPath, o.Domain); err != nil {
		o.Status = StatusFailed
		o.Err = err
		return p.finish(ctx, l, o)
	}
	o.Status = StatusRepaired
	return p.finish(ctx, l, o)
}

func (p *Pipeline) finish(ctx context.Context, l *slog.Logger, o Outcome) Outcome {
	o.Finished = p.now()
	elapsed := o.Finished.Sub(o.Started)

	switch o.Status {
	case StatusSkippedExists:
		l.Info("domain already exists, skipping upload", "status", o.Status)
	case StatusFailed:
		l.Error("upload failed", "status", o.Status, "attempts", o.Attempts, "elapsed", elapsed, "err", o.Err)
	default:
		l.Info("upload complete", "status", o.Status, "attempts", o.Attempts, "elapsed", elapsed)
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, o); err != nil {
			l.Warn("failed to record outcome", "err", err)
		}
	}
	return o
}
