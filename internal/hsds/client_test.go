package hsds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioux/hsds-agent/internal/config"
)

type call struct {
	name string
	args []string
}

// fakeRunner returns scripted results per tool name, in order.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	results map[string][]*Result
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: map[string][]*Result{}, errs: map[string]error{}}
}

func (f *fakeRunner) script(name string, res ...*Result) {
	f.results[name] = append(f.results[name], res...)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	queue := f.results[name]
	if len(queue) == 0 {
		return &Result{}, nil
	}
	res := queue[0]
	if len(queue) > 1 {
		f.results[name] = queue[1:]
	}
	return res, nil
}

func testClient(r Runner) *Client {
	conn := config.Connection{
		Endpoint:   "http://localhost:5101",
		Username:   "admin",
		Password:   "secret",
		RootPrefix: "/home/admin/",
	}
	tools := config.Tools{List: "hsls", Load: "hsload", Clear: "h5clear"}
	return NewClient(conn, tools, ".strc", r, nil)
}

const sampleListing = `
admin                            folder   2024-05-01 10:00:00 /home/admin/archive
admin  domain   2024-05-01 10:01:00 /home/admin/run1.strc
admin  DOMAIN   2024-05-01 10:02:00 /home/admin/RUN2.STRC
admin  domain   2024-05-01 10:03:00 /home/admin/notes.h5
admin  domain /home/admin/short.strc
5 items
`

func TestParseListing(t *testing.T) {
	names := ParseListing(sampleListing, "/home/admin/", ".strc")
	assert.Equal(t, []string{"run1.strc", "RUN2.STRC"}, names)
}

func TestParseListing_DomainLine(t *testing.T) {
	assert.Equal(t, []string{"x.strc"}, ParseListing("obj domain a b /home/admin/x.strc", "/home/admin/", ".strc"))
	assert.Empty(t, ParseListing("obj folder a b /home/admin/x.strc", "/home/admin/", ".strc"))
}

func TestParseListing_ForeignPrefixKept(t *testing.T) {
	names := ParseListing("u domain d t /other/y.strc", "/home/admin/", ".strc")
	assert.Equal(t, []string{"/other/y.strc"}, names)
}

func TestClient_Domain(t *testing.T) {
	c := testClient(newFakeRunner())
	assert.Equal(t, "/home/admin/f.strc", c.Domain("/data/in/f.strc"))
	assert.Equal(t, "/home/admin/f.strc", c.Domain(`C:\data\in\f.strc`))
}

func TestClient_Exists(t *testing.T) {
	r := newFakeRunner()
	r.script("hsls", &Result{Stdout: sampleListing})
	c := testClient(r)

	assert.True(t, c.Exists(context.Background(), "/home/admin/run1.strc"))
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"-e", "http://localhost:5101", "-u", "admin", "-p", "secret", "/home/admin/"}, r.calls[0].args)

	assert.False(t, c.Exists(context.Background(), "/home/admin/missing.strc"))
	assert.False(t, c.Exists(context.Background(), "/home/admin/notes.h5"))
}

func TestClient_ExistsLenientOnFailure(t *testing.T) {
	r := newFakeRunner()
	r.script("hsls", &Result{ExitCode: 1, Stderr: "connection refused"}, &Result{Stdout: ""}, &Result{Stdout: "garbage"})
	c := testClient(r)

	assert.False(t, c.Exists(context.Background(), "/home/admin/run1.strc"))
	assert.False(t, c.Exists(context.Background(), "/home/admin/run1.strc"))
	assert.False(t, c.Exists(context.Background(), "/home/admin/run1.strc"))

	r2 := newFakeRunner()
	r2.errs["hsls"] = errors.New("executable file not found")
	assert.False(t, testClient(r2).Exists(context.Background(), "/home/admin/run1.strc"))
}

func TestClient_ListFilesError(t *testing.T) {
	r := newFakeRunner()
	r.script("hsls", &Result{ExitCode: 2, Stderr: "401 Unauthorized"})
	_, err := testClient(r).ListFiles(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "401 Unauthorized")
}

func TestClient_UploadSuccess(t *testing.T) {
	r := newFakeRunner()
	r.script("hsload", &Result{Stdout: "done"})
	c := testClient(r)

	require.NoError(t, c.Upload(context.Background(), "/data/f.strc", "/home/admin/f.strc"))
	require.Len(t, r.calls, 1)
	assert.Equal(t, "hsload", r.calls[0].name)
	assert.Equal(t, []string{"-e", "http://localhost:5101", "-u", "admin", "-p", "secret", "/data/f.strc", "/home/admin/f.strc"}, r.calls[0].args)
}

func TestClient_UploadClassifiesInconsistency(t *testing.T) {
	r := newFakeRunner()
	r.script("hsload",
		&Result{ExitCode: 1, Stderr: "OSError: Unable to synchronously open file (file locking flag values don't match)"},
		&Result{ExitCode: 1, Stdout: "Traceback...\nUnable to synchronously open file"},
		&Result{ExitCode: 3, Stderr: "403 Forbidden"},
	)
	c := testClient(r)

	err := c.Upload(context.Background(), "/d/f.strc", "/home/admin/f.strc")
	assert.True(t, IsTransient(err))
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.ExitCode)
	assert.Equal(t, "hsload", te.Tool)

	err = c.Upload(context.Background(), "/d/f.strc", "/home/admin/f.strc")
	assert.True(t, IsTransient(err), "marker on stdout is classified too")

	err = c.Upload(context.Background(), "/d/f.strc", "/home/admin/f.strc")
	assert.False(t, IsTransient(err))
	assert.ErrorIs(t, err, ErrToolFailed)
}

func TestClient_UploadStartFailure(t *testing.T) {
	r := newFakeRunner()
	startErr := errors.New("exec: \"hsload\": executable file not found in $PATH")
	r.errs["hsload"] = startErr

	err := testClient(r).Upload(context.Background(), "/d/f.strc", "/home/admin/f.strc")
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.ErrorIs(t, err, startErr)
	assert.False(t, IsTransient(err))
}

func TestClient_Repair(t *testing.T) {
	r := newFakeRunner()
	c := testClient(r)
	require.NoError(t, c.Repair(context.Background(), "/d/f.strc"))
	require.Len(t, r.calls, 1)
	assert.Equal(t, "h5clear", r.calls[0].name)
	assert.Equal(t, []string{"-s", "/d/f.strc"}, r.calls[0].args)
}

func TestCheckTools_Unconfigured(t *testing.T) {
	st := CheckTools(config.Tools{List: "", Load: "definitely-not-a-real-binary-xyz", Clear: ""})
	require.Len(t, st, 3)
	assert.False(t, st[0].Available)
	assert.Equal(t, "command not configured", st[0].Detail)
	assert.False(t, st[1].Available)
	assert.Contains(t, st[1].Detail, "not found")
}

func TestPinger_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" || r.URL.Path != "/about" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conn := config.Connection{Endpoint: srv.URL, Username: "admin", Password: "secret"}
	require.NoError(t, NewPinger(conn, 0, nil).Ping(context.Background()))

	conn.Password = "wrong"
	err := NewPinger(conn, 0, nil).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestPinger_StartStop(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer srv.Close()

	p := NewPinger(config.Connection{Endpoint: srv.URL}, 20*time.Millisecond, nil)
	p.Start()
	time.Sleep(120 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, hits, 0)
}

func TestPinger_DisabledStopReturns(t *testing.T) {
	p := NewPinger(config.Connection{Endpoint: "http://127.0.0.1:1"}, 0, nil)
	p.Start()
	p.Stop()
	p.Stop()
}
