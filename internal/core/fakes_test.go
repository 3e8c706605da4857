package core

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/sioux/hsds-agent/internal/hsds"
)

const testPrefix = "/home/admin/"

// fakeStore is an in-memory remote. Successful uploads make the domain exist.
type fakeStore struct {
	mu         sync.Mutex
	existing   map[string]bool
	uploadErrs []error
	uploads    []string
	repairs    []string
	probes     int

	// blockUpload makes Upload wait for ctx cancellation.
	blockUpload bool
	// panicOn makes Upload panic for the given local path.
	panicOn string
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}}
}

func (f *fakeStore) Domain(localPath string) string {
	return testPrefix + filepath.Base(localPath)
}

func (f *fakeStore) Exists(_ context.Context, domain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.existing[domain]
}

func (f *fakeStore) Upload(ctx context.Context, localPath, domain string) error {
	f.mu.Lock()
	f.uploads = append(f.uploads, localPath)
	if f.panicOn != "" && f.panicOn == localPath {
		f.mu.Unlock()
		panic("boom")
	}
	block := f.blockUpload
	var err error
	if len(f.uploadErrs) > 0 {
		err = f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return &hsds.ToolError{Tool: "hsload", ExitCode: -1, Err: hsds.ErrToolFailed, Cause: ctx.Err()}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.existing[domain] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Repair(_ context.Context, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repairs = append(f.repairs, localPath)
	return nil
}

func (f *fakeStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeStore) uploadedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *fakeStore) repairCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.repairs)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	err      error
}

func (r *fakeRecorder) Record(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return r.err
}

func (r *fakeRecorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func (r *fakeRecorder) paths() []string {
	var out []string
	for _, o := range r.all() {
		out = append(out, o.Path)
	}
	return out
}

func transientErr() error {
	return &hsds.ToolError{
		Tool:     "hsload",
		ExitCode: 1,
		Output:   "OSError: " + hsds.InconsistentMarker,
		Err:      hsds.ErrInconsistentFile,
	}
}

func genericErr() error {
	return &hsds.ToolError{Tool: "hsload", ExitCode: 2, Output: "403 Forbidden", Err: hsds.ErrToolFailed}
}
