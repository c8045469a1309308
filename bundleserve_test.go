package bundleserve

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/jpalmerr/bundleserve/build"
)

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func disableColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

// testBundle returns a file system holding a built single page app and a
// tracker whose last build produced it.
func testBundle(t *testing.T) (afero.Fs, *build.Tracker) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/index.a1b2.html": "<html>app</html>",
		"/main.js":         "console.log('app')",
	}
	for name, body := range files {
		if err := afero.WriteFile(fsys, name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tracker := build.NewTracker()
	tracker.Complete(build.Result{MainAsset: &build.Asset{Type: "html", Name: "index.html", Hash: "a1b2"}})
	return fsys, tracker
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServer_Handler(t *testing.T) {
	fsys, tracker := testBundle(t)
	srv, err := New(
		WithFileSystem(fsys),
		WithBuildStatus(tracker),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/main.js", http.StatusOK, "console.log('app')"},
		{"/index.a1b2.html", http.StatusOK, "<html>app</html>"},
		// inside a "/" public URL nothing falls back to the index
		{"/", http.StatusNotFound, ""},
		{"/missing.png", http.StatusNotFound, ""},
	}

	h := srv.Handler()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestServer_HandlerOutsidePublicURLFallsBackToIndex(t *testing.T) {
	fsys, tracker := testBundle(t)
	srv, err := New(
		WithFileSystem(fsys),
		WithBuildStatus(tracker),
		WithPublicURL("/assets"),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/profile", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>app</html>" {
		t.Errorf("GET /settings/profile = %d %q, want the index bundle", rec.Code, rec.Body.String())
	}
}

func TestServer_HandlerFallback(t *testing.T) {
	fsys, tracker := testBundle(t)
	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv, err := New(
		WithFileSystem(fsys),
		WithBuildStatus(tracker),
		WithFallback(fallback),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.png", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want fallback's %d", rec.Code, http.StatusTeapot)
	}
}

func TestServer_StartServesAndReportsReady(t *testing.T) {
	disableColor(t)
	fsys, tracker := testBundle(t)

	var status syncBuffer
	ready := make(chan ListenResult, 1)
	srv, err := New(
		WithFileSystem(fsys),
		WithBuildStatus(tracker),
		WithHost("127.0.0.1"),
		WithPort(0),
		WithLogger(discardLogger()),
		WithStatusWriter(&status),
		WithReadyCallback(func(r ListenResult) { ready <- r }),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ls, err := srv.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case r := <-ready:
		if r.Port != ls.Port() || r.Scheme != "http" || r.PortChanged() {
			t.Errorf("ready result = %+v, want port %d over http without change", r, ls.Port())
		}
	case <-time.After(time.Second):
		t.Fatal("ready callback not invoked")
	}

	want := "Server running at " + ls.URL() + "\n"
	if status.String() != want {
		t.Errorf("status line = %q, want %q", status.String(), want)
	}

	code, body := get(t, http.DefaultClient, ls.URL()+"/main.js")
	if code != http.StatusOK || body != "console.log('app')" {
		t.Errorf("GET /main.js = %d %q", code, body)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := ls.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := ls.Wait(); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestServer_StartPreferredPortTaken(t *testing.T) {
	disableColor(t)
	fsys, tracker := testBundle(t)

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer occupied.Close()
	taken := occupied.Addr().(*net.TCPAddr).Port

	var status syncBuffer
	srv, err := New(
		WithFileSystem(fsys),
		WithBuildStatus(tracker),
		WithHost("127.0.0.1"),
		WithPort(taken),
		WithLogger(discardLogger()),
		WithStatusWriter(&status),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ls, err := srv.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if ls.Port() == taken {
		t.Fatalf("Port() = %d, want a port other than the occupied one", taken)
	}
	if !ls.Result().PortChanged() {
		t.Error("PortChanged() = false, want true")
	}
	want := "Server running at " + ls.URL() + " - configured port " + strconv.Itoa(taken) + " could not be used.\n"
	if status.String() != want {
		t.Errorf("status line = %q, want %q", status.String(), want)
	}

	code, _ := get(t, http.DefaultClient, ls.URL()+"/main.js")
	if code != http.StatusOK {
		t.Errorf("GET / = %d, want 200 on the fallback port", code)
	}
}

func TestServer_StartCredentialFailureOpensNoSocket(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)

	var status syncBuffer
	called := false
	srv, err := New(
		WithOutputDir(dir),
		WithHost("127.0.0.1"),
		WithPort(port),
		WithKeyCert(dir+"/missing-key.pem", dir+"/missing-cert.pem"),
		WithLogger(discardLogger()),
		WithStatusWriter(&status),
		WithReadyCallback(func(ListenResult) { called = true }),
	)
	if err != nil {
		t.Fatal(err)
	}

	ls, err := srv.Start(context.Background())
	if ls != nil {
		t.Error("Start() returned a listening server despite missing credentials")
	}
	var credErr *CredentialLoadError
	if !errors.As(err, &credErr) {
		t.Fatalf("Start() error = %v, want *CredentialLoadError", err)
	}
	if called || status.String() != "" {
		t.Error("ready notification emitted despite the credential failure")
	}

	// the preferred port was never bound
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("preferred port unavailable after failed Start: %v", err)
	}
	ln.Close()
}

func TestServer_StartHTTPS(t *testing.T) {
	disableColor(t)
	fsys, tracker := testBundle(t)
	keyFile, certFile := writeTestCert(t, t.TempDir())

	srv, err := New(
		WithFileSystem(fsys),
		WithBuildStatus(tracker),
		WithHost("127.0.0.1"),
		WithPort(0),
		WithKeyCert(keyFile, certFile),
		WithLogger(discardLogger()),
		WithStatusWriter(io.Discard),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ls, err := srv.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !strings.HasPrefix(ls.URL(), "https://") {
		t.Errorf("URL() = %q, want https scheme", ls.URL())
	}

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // test certificate
	}}
	defer client.CloseIdleConnections()

	code, body := get(t, client, ls.URL()+"/main.js")
	if code != http.StatusOK || body != "console.log('app')" {
		t.Errorf("GET /main.js over https = %d %q", code, body)
	}
}

func TestServer_StartCancelledContext(t *testing.T) {
	srv, err := New(WithOutputDir(t.TempDir()), WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := srv.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
}

func TestServer_ReadyCallbackPanicIsRecovered(t *testing.T) {
	srv, err := New(
		WithOutputDir(t.TempDir()),
		WithHost("127.0.0.1"),
		WithPort(0),
		WithLogger(discardLogger()),
		WithStatusWriter(io.Discard),
		WithReadyCallback(func(ListenResult) { panic("boom") }),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

// TestRun_BlocksUntilContextCancelled verifies that Run blocks until the
// provided context is cancelled.
func TestRun_BlocksUntilContextCancelled(t *testing.T) {
	srv, err := New(
		WithOutputDir(t.TempDir()),
		WithHost("127.0.0.1"),
		WithPort(0),
		WithLogger(discardLogger()),
		WithStatusWriter(io.Discard),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Run() returned early with error: %v", err)
	default:
		// expected: still blocking
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

// TestRun_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Run
// returns nil without binding when the context is already cancelled.
func TestRun_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	srv, err := New(WithOutputDir(t.TempDir()), WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestRun_CredentialFailure(t *testing.T) {
	dir := t.TempDir()
	srv, err := New(
		WithOutputDir(dir),
		WithPfx(dir+"/missing.pfx", ""),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}

	var credErr *CredentialLoadError
	if err := srv.Run(context.Background()); !errors.As(err, &credErr) {
		t.Errorf("Run() error = %v, want *CredentialLoadError", err)
	}
}
