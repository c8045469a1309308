package bundleserve

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/afero"

	"github.com/jpalmerr/bundleserve/internal/router"
)

// serverConfig holds mutable state during Server construction.
type serverConfig struct {
	outputDir      string
	fsys           afero.Fs
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

// Option is a function that configures a [Server] during construction.
//
// Options return an error if validation fails, in which case [New] fails
// before any file or socket is touched.
type Option func(*serverConfig) error

// WithOutputDir sets the bundler's output directory, the root for static
// file serving. Either WithOutputDir or [WithFileSystem] is required.
func WithOutputDir(dir string) Option {
	return func(cfg *serverConfig) error {
		if dir == "" {
			return errors.New("output directory cannot be empty")
		}
		cfg.outputDir = dir
		return nil
	}
}

// WithFileSystem serves static files from fsys instead of an output
// directory on disk.
func WithFileSystem(fsys afero.Fs) Option {
	return func(cfg *serverConfig) error {
		if fsys == nil {
			return errors.New("file system cannot be nil")
		}
		cfg.fsys = fsys
		return nil
	}
}

// WithPublicURL sets the URL path prefix under which bundled files are
// served. Defaults to "/".
//
// Returns an error if the prefix does not start with "/".
func WithPublicURL(publicURL string) Option {
	return func(cfg *serverConfig) error {
		if !strings.HasPrefix(publicURL, "/") {
			return fmt.Errorf("public url must start with \"/\", got %q", publicURL)
		}
		cfg.publicURL = publicURL
		return nil
	}
}

// WithPort sets the preferred port. When it is unavailable the server binds
// an OS assigned port instead and says so on the status line. Zero asks for
// any free port. Defaults to 1234.
func WithPort(port int) Option {
	return func(cfg *serverConfig) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("port must be between 0 and 65535, got %d", port)
		}
		cfg.port = port
		return nil
	}
}

// WithHost sets the host used for the listen address and the printed URL.
// Defaults to "localhost".
func WithHost(host string) Option {
	return func(cfg *serverConfig) error {
		if host == "" {
			return errors.New("host cannot be empty")
		}
		cfg.host = host
		return nil
	}
}

// WithTLS selects the transport security mode. See [NoTLS], [KeyCert],
// [Pfx] and [SelfSigned]. Defaults to plain HTTP.
//
// Incomplete modes, such as a key without a certificate, are rejected here.
func WithTLS(t TLS) Option {
	return func(cfg *serverConfig) error {
		if err := validateTLS(t); err != nil {
			return err
		}
		cfg.tls = t
		return nil
	}
}

// WithKeyCert is shorthand for WithTLS(KeyCert(keyFile, certFile)).
func WithKeyCert(keyFile, certFile string) Option {
	return WithTLS(KeyCert(keyFile, certFile))
}

// WithPfx is shorthand for WithTLS(Pfx(file, password)).
func WithPfx(file, password string) Option {
	return WithTLS(Pfx(file, password))
}

// WithSelfSignedTLS is shorthand for WithTLS(SelfSigned(dir)).
func WithSelfSignedTLS(dir string) Option {
	return WithTLS(SelfSigned(dir))
}

// WithPrefixMatch sets how request paths are matched against the public
// URL: "segment" (the default) requires a whole path segment, so
// "/publicity" is outside "/public"; "raw" is a plain string prefix.
func WithPrefixMatch(mode string) Option {
	return func(cfg *serverConfig) error {
		m, err := router.ParsePrefixMatch(mode)
		if err != nil {
			return err
		}
		cfg.prefixMatch = m
		return nil
	}
}

// WithFallback sets the handler called for requests that match neither a
// built file nor the index fallback. Without one such requests get an empty
// 404.
func WithFallback(h http.Handler) Option {
	return func(cfg *serverConfig) error {
		if h == nil {
			return errors.New("fallback handler cannot be nil")
		}
		cfg.fallback = h
		return nil
	}
}

// WithBuildStatus sets the source of build state. Without one the server
// behaves as if a build had finished without a main asset.
func WithBuildStatus(p BuildStatusProvider) Option {
	return func(cfg *serverConfig) error {
		if p == nil {
			return errors.New("build status provider cannot be nil")
		}
		cfg.provider = p
		return nil
	}
}

// WithLogger sets a custom logger for server events.
//
// If not provided, [slog.Default] is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serverConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusWriter sets where the persistent "Server running at" line is
// printed. Defaults to standard output.
func WithStatusWriter(w io.Writer) Option {
	return func(cfg *serverConfig) error {
		if w == nil {
			return errors.New("status writer cannot be nil")
		}
		cfg.statusWriter = w
		return nil
	}
}

// WithReadyCallback registers a function called once the server is
// listening. Can be called multiple times; callbacks run in registration
// order. A panicking callback is logged and does not affect the server.
func WithReadyCallback(fn func(ListenResult)) Option {
	return func(cfg *serverConfig) error {
		if fn == nil {
			return errors.New("ready callback cannot be nil")
		}
		cfg.readyCallbacks = append(cfg.readyCallbacks, fn)
		return nil
	}
}

// WithStatusAPI enables the JSON status and event stream endpoints under
// /__bundleserve/.
func WithStatusAPI(enabled bool) Option {
	return func(cfg *serverConfig) error {
		cfg.statusAPI = enabled
		return nil
	}
}

// WithLiveReload enables /__bundleserve/reload.js, a client script that
// reloads the page after each successful build, and the event stream at
// /__bundleserve/events it subscribes to.
func WithLiveReload(enabled bool) Option {
	return func(cfg *serverConfig) error {
		cfg.liveReload = enabled
		return nil
	}
}
