package bundleserve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/fatih/color"

	"github.com/jpalmerr/bundleserve/build"
	"github.com/jpalmerr/bundleserve/internal/router"
	"github.com/jpalmerr/bundleserve/internal/server"
	"github.com/jpalmerr/bundleserve/internal/static"
)

const (
	defaultPort      = 1234
	defaultHost      = "localhost"
	defaultPublicURL = "/"
)

// Server serves the output of an asset bundler during development.
//
// Server gates every request behind the build in progress, serves built
// files under the public URL and falls back to the main HTML bundle for any
// other path, so client side routes work. It is created using [New] with
// functional options and started with [Server.Start] or [Server.Run].
//
// The typical lifecycle is:
//
//	tracker := build.NewTracker()
//	srv, err := bundleserve.New(
//	    bundleserve.WithOutputDir("dist"),
//	    bundleserve.WithBuildStatus(tracker),
//	)
//	if err != nil {
//	    slog.Error("failed to create server", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	srv.Run(ctx) // blocks until context cancelled
type Server struct {
	files          *static.Server
	publicURL      string
	tls            TLS
	port           int
	host           string
	prefixMatch    router.PrefixMatch
	fallback       http.Handler
	provider       BuildStatusProvider
	logger         *slog.Logger
	statusWriter   io.Writer
	readyCallbacks []func(ListenResult)
	statusAPI      bool
	liveReload     bool
}

// New creates a new [Server] with the given options.
//
// An output directory ([WithOutputDir]) or file system ([WithFileSystem])
// is required. Other options have defaults:
//   - Port: 1234
//   - Host: localhost
//   - Public URL: /
//   - TLS: none
//
// New performs no I/O; TLS credentials are read by [Server.Start].
func New(opts ...Option) (*Server, error) {
	cfg := &serverConfig{
		publicURL: defaultPublicURL,
		tls:       PlainHTTP{},
		port:      defaultPort,
		host:      defaultHost,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var files *static.Server
	switch {
	case cfg.fsys != nil:
		files = static.New(cfg.fsys)
	case cfg.outputDir != "":
		files = static.NewDir(cfg.outputDir)
	default:
		return nil, errors.New("an output directory or file system is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	statusWriter := cfg.statusWriter
	if statusWriter == nil {
		statusWriter = color.Output
	}
	provider := cfg.provider
	if provider == nil {
		provider = build.NewTracker()
	}

	return &Server{
		files:          files,
		publicURL:      cfg.publicURL,
		tls:            cfg.tls,
		port:           cfg.port,
		host:           cfg.host,
		prefixMatch:    cfg.prefixMatch,
		fallback:       cfg.fallback,
		provider:       provider,
		logger:         logger,
		statusWriter:   statusWriter,
		readyCallbacks: cfg.readyCallbacks,
		statusAPI:      cfg.statusAPI,
		liveReload:     cfg.liveReload,
	}, nil
}

// Handler returns the complete request handler without binding a socket.
func (s *Server) Handler() http.Handler {
	return s.newHTTPServer(nil).Handler()
}

// Start reads the TLS credentials, binds a port and begins serving in the
// background.
//
// Credentials are loaded before any socket is opened; a failure is returned
// as a *[CredentialLoadError] and nothing is served. The preferred port is
// tried first and, if unavailable, an OS assigned port is used instead. A
// failure to bind either is returned as a *[ListenError].
//
// Once listening, Start prints the status line, logs the URL and runs the
// ready callbacks. The server runs until ctx is cancelled or
// [ListeningServer.Shutdown] is called.
func (s *Server) Start(ctx context.Context) (*ListeningServer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tlsConfig, err := loadTLSConfig(s.tls)
	if err != nil {
		s.logger.Error("failed to load tls credentials", "error", err)
		return nil, err
	}

	ln, port, err := listen(ctx, s.host, s.port, s.logger)
	if err != nil {
		s.logger.Error("failed to listen", "error", err)
		return nil, err
	}

	result := ListenResult{
		Host:          s.host,
		Port:          port,
		PreferredPort: s.port,
		Scheme:        s.tls.Scheme(),
	}

	srv := s.newHTTPServer(func(err error) {
		lerr := &ListenError{Port: result.Port, Err: err}
		s.logger.Error("server stopped", "port", result.Port, "error", lerr.Describe())
	})
	srv.Start(ctx, ln, tlsConfig)

	writeStatusLine(s.statusWriter, result)
	s.logger.Info("server listening",
		"url", result.URL(),
		"preferred_port", result.PreferredPort,
		"port_changed", result.PortChanged(),
	)
	for _, cb := range s.readyCallbacks {
		invokeCallbackSafe(cb, result, s.logger)
	}

	return &ListeningServer{ln: ln, srv: srv, result: result}, nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts it
// down gracefully.
//
// Returns nil on graceful shutdown, or if ctx is already cancelled. Returns
// an error if the server cannot start or stops unexpectedly.
func (s *Server) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	ls, err := s.Start(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- ls.Wait()
	}()

	select {
	case <-ctx.Done():
		err = <-errCh
		s.logger.Info("server stopped")
		return err
	case err := <-errCh:
		return err
	}
}

// Port returns the configured preferred port.
func (s *Server) Port() int {
	return s.port
}

// Host returns the configured host.
func (s *Server) Host() string {
	return s.host
}

// PublicURL returns the URL prefix for bundled files.
func (s *Server) PublicURL() string {
	return s.publicURL
}

// Scheme returns "https" when a TLS mode is configured, otherwise "http".
func (s *Server) Scheme() string {
	return s.tls.Scheme()
}

func (s *Server) newHTTPServer(onServeError func(error)) *server.Server {
	rt := router.New(s.provider, s.files, router.Options{
		PublicURL:   s.publicURL,
		PrefixMatch: s.prefixMatch,
	})

	var h http.Handler = rt
	if s.fallback != nil {
		h = rt.Middleware(s.fallback)
	}

	events, _ := s.provider.(server.EventSource)
	return server.NewServer(server.Options{
		Router:       h,
		Status:       s.provider,
		Events:       events,
		StatusAPI:    s.statusAPI,
		LiveReload:   s.liveReload,
		OnServeError: onServeError,
		Logger:       s.logger,
	})
}

// ListeningServer is a running [Server].
type ListeningServer struct {
	ln     net.Listener
	srv    *server.Server
	result ListenResult
}

// Addr returns the bound network address.
func (ls *ListeningServer) Addr() net.Addr {
	return ls.ln.Addr()
}

// Port returns the bound port.
func (ls *ListeningServer) Port() int {
	return ls.result.Port
}

// Result returns the outcome of port negotiation.
func (ls *ListeningServer) Result() ListenResult {
	return ls.result
}

// URL returns the address browsers should use.
func (ls *ListeningServer) URL() string {
	return ls.result.URL()
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// until ctx is done.
func (ls *ListeningServer) Shutdown(ctx context.Context) error {
	return ls.srv.Shutdown(ctx)
}

// Wait blocks until the server stops. It returns nil after a graceful
// shutdown and a *[ListenError] if serving failed.
func (ls *ListeningServer) Wait() error {
	if err := ls.srv.Wait(); err != nil {
		return &ListenError{Port: ls.result.Port, Err: err}
	}
	return nil
}

// invokeCallbackSafe calls a ready callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(ListenResult), result ListenResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ready callback panicked",
				"panic", r,
				"url", result.URL(),
			)
		}
	}()
	cb(result)
}
