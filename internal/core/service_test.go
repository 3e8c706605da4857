package core

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioux/hsds-agent/internal/config"
)

type fakeHeartbeat struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (h *fakeHeartbeat) Start() { h.started.Add(1) }
func (h *fakeHeartbeat) Stop()  { h.stopped.Add(1) }

func testConfig(dirs ...string) config.Config {
	cfg := config.Default()
	cfg.WatchDirs = dirs
	cfg.DebounceInterval = 100 * time.Millisecond
	cfg.SettleWindow = 10 * time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	return cfg
}

func stopService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestService_SkipsMissingDirectories(t *testing.T) {
	good := t.TempDir()
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	s := NewService(testConfig(good, filepath.Join(good, "missing"), file, good), newFakeStore(), nil, nil)
	s.Start(context.Background())
	defer stopService(t, s)

	assert.Equal(t, []string{good}, s.WatchedDirs())
}

func TestService_UploadsExistingAndLiveFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.strc")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0o644))

	store := newFakeStore()
	rec := &fakeRecorder{}
	heart := &fakeHeartbeat{}
	s := NewService(testConfig(dir), store, rec, nil, WithHeartbeat(heart))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return slices.Contains(rec.paths(), existing) },
		2*time.Second, 10*time.Millisecond, "startup scan should upload the existing file")

	live := filepath.Join(dir, "new.strc")
	require.NoError(t, os.WriteFile(live, []byte("fresh"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("nope"), 0o644))

	require.Eventually(t, func() bool { return slices.Contains(rec.paths(), live) },
		5*time.Second, 10*time.Millisecond, "live file should be uploaded once quiet")

	stopService(t, s)

	for _, p := range store.uploadedPaths() {
		assert.Equal(t, ".strc", filepath.Ext(p))
	}
	assert.Equal(t, int32(1), heart.started.Load())
	assert.Equal(t, int32(1), heart.stopped.Load())
	assert.Equal(t, 0, s.Tracker().Pending())
	assert.Equal(t, 0, s.Queue().Len(), "queue drained through the sentinel")
}

func TestService_LiveFileWaitsForDebounce(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.DebounceInterval = time.Hour

	rec := &fakeRecorder{}
	s := NewService(cfg, newFakeStore(), rec, nil)
	s.Start(context.Background())
	defer stopService(t, s)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "busy.strc"), []byte("writing"), 0o644))
	require.Eventually(t, func() bool { return s.Tracker().Pending() == 1 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestService_RunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	s := NewService(testConfig(dir), newFakeStore(), nil, nil, WithDrainTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(s.WatchedDirs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
