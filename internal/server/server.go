package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jpalmerr/bundleserve/build"
	"github.com/jpalmerr/bundleserve/reload"
)

const (
	// APIPrefix is the path prefix reserved for bundleserve's own endpoints.
	APIPrefix = "/__bundleserve"

	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown after the context is cancelled.
	shutdownTimeout = 5 * time.Second

	// eventsPlaceholder is the marker in reload.js replaced with the events URL.
	eventsPlaceholder = "{{.EventsURL}}"
)

// StatusSource provides snapshots of the build state.
type StatusSource interface {
	Status() build.Status
}

// EventSource provides a stream of build events.
type EventSource interface {
	Subscribe() <-chan build.Event
	Unsubscribe(ch <-chan build.Event)
}

// Options configures a [Server].
type Options struct {
	// Router answers every request not claimed by the API routes.
	Router http.Handler

	// Status backs the status API and the first event stream message.
	// Required when StatusAPI is set.
	Status StatusSource

	// Events backs the event stream and live reload. May be nil, in which
	// case neither is served.
	Events EventSource

	// StatusAPI enables the JSON status and event stream endpoints.
	StatusAPI bool

	// LiveReload enables the embedded live-reload client.
	LiveReload bool

	// OnServeError is called once if the server stops with an error other
	// than a normal shutdown.
	OnServeError func(error)

	Logger *slog.Logger
}

// Server serves the router and the bundleserve API on a single listener.
//
// The server shuts down gracefully when the context passed to Start is cancelled.
type Server struct {
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server

	done    chan struct{}
	errMu   sync.Mutex
	serveEr error
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Handler returns the complete request handler: middleware, API routes and
// the router as catch-all.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	if s.opts.StatusAPI && s.opts.Status != nil {
		r.Get(APIPrefix+"/status", s.handleStatus)
	}
	// the reload client consumes the event stream, so either feature serves it
	if (s.opts.StatusAPI || s.opts.LiveReload) && s.opts.Events != nil {
		r.Get(APIPrefix+"/events", s.handleSSE)
	}
	if s.opts.LiveReload && s.opts.Events != nil {
		r.Get(APIPrefix+"/reload.js", s.handleReloadScript)
	}

	r.Handle("/*", s.opts.Router)
	return r
}

// Start begins serving on ln in a background goroutine.
//
// If tlsConfig is non-nil connections are served over TLS. Start is
// non-blocking; the server runs until ctx is cancelled, at which point it
// shuts down gracefully with a 5-second timeout, or until [Server.Shutdown]
// is called.
func (s *Server) Start(ctx context.Context, ln net.Listener, tlsConfig *tls.Config) {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: time.Minute,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// which releases requests waiting on a build and SSE streams.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		defer close(s.done)
		var err error
		if tlsConfig != nil {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errMu.Lock()
			s.serveEr = err
			s.errMu.Unlock()
			if s.opts.OnServeError != nil {
				s.opts.OnServeError(err)
			}
		}
	}()

	// shutdown on context cancellation
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server. It is safe to call after the server
// has already stopped.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Wait blocks until the server has stopped and returns the error that
// stopped it, or nil after a normal shutdown.
func (s *Server) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.serveEr
}

// handleStatus returns the current build status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.opts.Status.Status()); err != nil {
		s.logger.Error("failed to encode status response", "error", err)
	}
}

// handleReloadScript serves the live-reload client.
func (s *Server) handleReloadScript(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(reload.Assets, "assets/reload.js")
	if err != nil {
		http.Error(w, "reload client not found", http.StatusInternalServerError)
		return
	}
	rendered := strings.ReplaceAll(string(content), eventsPlaceholder, APIPrefix+"/events")

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write reload client", "error", err)
	}
}

// handleSSE streams build events via Server-Sent Events.
//
// The first message is a snapshot of the current status; every following
// message is a [build.Event]. The handler uses write deadlines so that a
// slow or vanished client cannot pin the goroutine.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.opts.Events.Subscribe()
	defer s.opts.Events.Unsubscribe(ch)

	if s.opts.Status != nil {
		if data, err := json.Marshal(s.opts.Status.Status()); err == nil {
			if err := writeAndFlush(data); err != nil {
				return
			}
		}
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
