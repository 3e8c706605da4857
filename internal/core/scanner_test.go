package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(path, scanEpoch, scanEpoch))
}

// sleepHook returns a sleep replacement that runs mutate on the n-th call
// (1-based) and does nothing otherwise.
func sleepHook(n int, mutate func()) ScannerOption {
	calls := 0
	return WithSleep(func(context.Context, time.Duration) error {
		calls++
		if calls == n {
			mutate()
		}
		return nil
	})
}

func collect(s *Scanner, dirs ...string) []string {
	var got []string
	s.Scan(context.Background(), dirs, func(p string) { got = append(got, p) })
	return got
}

func TestScanner_QueuesStableMatchingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/watch"
	require.NoError(t, fs.MkdirAll(filepath.Join(dir, "nested.strc"), 0o755))
	writeFile(t, fs, filepath.Join(dir, "a.strc"), "aaaa")
	writeFile(t, fs, filepath.Join(dir, "B.STRC"), "bb")
	writeFile(t, fs, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, fs, filepath.Join(dir, "nested.strc", "deep.strc"), "x")

	s := NewScanner(fs, ".strc", time.Second, nil, WithSleep(func(context.Context, time.Duration) error { return nil }))
	got := collect(s, dir)

	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.strc"), filepath.Join(dir, "B.STRC")}, got)
}

func TestScanner_SkipsFileThatGrows(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/watch"
	a := filepath.Join(dir, "a.strc")
	b := filepath.Join(dir, "b.strc")
	writeFile(t, fs, a, "one")
	writeFile(t, fs, b, "two")

	s := NewScanner(fs, ".strc", time.Second, nil, sleepHook(1, func() {
		require.NoError(t, afero.WriteFile(fs, a, []byte("one and more"), 0o644))
		require.NoError(t, fs.Chtimes(a, scanEpoch, scanEpoch))
	}))

	assert.Equal(t, []string{b}, collect(s, dir))
}

func TestScanner_SkipsFileTouchedWithSameSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := "/watch/a.strc"
	writeFile(t, fs, a, "same")

	s := NewScanner(fs, ".strc", time.Second, nil, sleepHook(1, func() {
		later := scanEpoch.Add(time.Minute)
		require.NoError(t, fs.Chtimes(a, later, later))
	}))

	assert.Empty(t, collect(s, "/watch"))
}

func TestScanner_VanishedFileDoesNotStopScan(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := "/watch/a.strc"
	b := "/watch/b.strc"
	writeFile(t, fs, a, "gone soon")
	writeFile(t, fs, b, "stays")

	s := NewScanner(fs, ".strc", time.Second, nil, sleepHook(1, func() {
		require.NoError(t, fs.Remove(a))
	}))

	assert.Equal(t, []string{b}, collect(s, "/watch"))
}

func TestScanner_UnreadableDirectoryIsSkipped(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ok/x.strc", "x")

	s := NewScanner(fs, ".strc", 0, nil)
	assert.Equal(t, []string{"/ok/x.strc"}, collect(s, "/missing", "/ok"))
}

func TestScanner_CancelledContextStopsEarly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/watch/a.strc", "a")
	writeFile(t, fs, "/watch/b.strc", "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(fs, ".strc", time.Hour, nil)
	var got []string
	n := s.Scan(ctx, []string{"/watch"}, func(p string) { got = append(got, p) })

	assert.Equal(t, 0, n)
	assert.Empty(t, got)
}

func TestScanner_IsStableHonoursContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/watch/a.strc", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(fs, ".strc", time.Hour, nil)
	stable, err := s.IsStable(ctx, "/watch/a.strc")
	assert.False(t, stable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_IsStableDetectsChangeOnMemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/w/a.strc", "abc")

	s := NewScanner(fs, ".strc", time.Second, nil, sleepHook(1, func() {
		require.NoError(t, afero.WriteFile(fs, "/w/a.strc", []byte("abc plus fifteen"), 0o644))
	}))
	stable, err := s.IsStable(context.Background(), "/w/a.strc")
	require.NoError(t, err)
	assert.False(t, stable)

	s = NewScanner(fs, ".strc", time.Second, nil, WithSleep(func(context.Context, time.Duration) error { return nil }))
	stable, err = s.IsStable(context.Background(), "/w/a.strc")
	require.NoError(t, err)
	assert.True(t, stable)
}
