package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloudeng.io/logging/ctxlog"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jpalmerr/bundleserve/build"
)

func TestRequestLogger_ContextLoggerAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var reqID string
	router := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID = middleware.GetReqID(r.Context())
		ctxlog.Logger(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	srv := NewServer(Options{Router: router, Status: build.NewTracker(), Logger: logger})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pot", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if reqID == "" {
		t.Fatal("request id not set in context")
	}

	out := buf.String()
	if n := strings.Count(out, reqID); n != 2 {
		t.Errorf("request id appears %d times, want 2 (handler and access log)\nGot: %s", n, out)
	}
	for _, want := range []string{
		"inside handler",
		"msg=request",
		"path=/pot",
		"status=418",
		"bytes=15",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q\nGot: %s", want, out)
		}
	}
}
