package router

import (
	"errors"
	"net/http"

	"cloudeng.io/logging/ctxlog"
	"github.com/jpalmerr/bundleserve/build"
	"github.com/jpalmerr/bundleserve/internal/static"
)

// BuildErrorMessage is the body of the response sent while the build is broken.
const BuildErrorMessage = "🚨 Build error, check the console for details."

// StatusProvider is the read-only view of the bundler's build state.
type StatusProvider interface {
	// Status returns a snapshot of the current build state.
	Status() build.Status

	// Done returns a channel closed when the pending build completes.
	Done() <-chan struct{}
}

// FileServer serves a file from the output directory.
// It returns [static.ErrNotFound] without writing anything on a miss.
type FileServer interface {
	Serve(w http.ResponseWriter, r *http.Request, name string) error
}

// Options configures a [Router].
type Options struct {
	// PublicURL is the path prefix under which bundled files are exposed.
	// Empty is treated as "/".
	PublicURL string

	// PrefixMatch selects how request paths are tested against PublicURL.
	PrefixMatch PrefixMatch
}

// Router is an [http.Handler] that gates requests on the build state.
type Router struct {
	provider StatusProvider
	files    FileServer
	prefix   prefix
}

// New creates a [Router].
func New(provider StatusProvider, files FileServer, opts Options) *Router {
	return &Router{
		provider: provider,
		files:    files,
		prefix:   newPrefix(opts.PublicURL, opts.PrefixMatch),
	}
}

// ServeHTTP implements [http.Handler]. Misses are answered with a bare 404.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handle(w, r, nil)
}

// Middleware returns a handler that behaves like the [Router] but delegates
// misses to next instead of writing a 404. A nil next is the same as the
// Router itself.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.handle(w, r, next)
	})
}

func (rt *Router) handle(w http.ResponseWriter, r *http.Request, next http.Handler) {
	logger := ctxlog.Logger(r.Context())

	// the status that decides the response is read only after any wait
	st := rt.provider.Status()
	if st.Pending {
		logger.Debug("request waiting for build", "build_id", st.BuildID, "path", r.URL.Path)
		select {
		case <-rt.provider.Done():
		case <-r.Context().Done():
			// client went away while the build was running
			logger.Debug("request abandoned while waiting for build", "path", r.URL.Path)
			return
		}
		st = rt.provider.Status()
	}

	if st.Errored {
		sendBuildError(w)
		return
	}

	rest, inside := rt.prefix.strip(r.URL.Path)
	if !inside {
		rt.sendIndex(w, r, st.MainAsset, next)
		return
	}
	rt.serve(w, r, rest, next)
}

// sendIndex serves the main HTML bundle for a single-page navigation.
func (rt *Router) sendIndex(w http.ResponseWriter, r *http.Request, main *build.Asset, next http.Handler) {
	if main == nil || !main.IsHTML() {
		sendNotFound(w, r, next)
		return
	}
	rt.serve(w, r, "/"+main.BundleName(true), next)
}

func (rt *Router) serve(w http.ResponseWriter, r *http.Request, name string, next http.Handler) {
	err := rt.files.Serve(w, r, name)
	switch {
	case err == nil:
	case errors.Is(err, static.ErrNotFound):
		sendNotFound(w, r, next)
	default:
		ctxlog.Logger(r.Context()).Error("failed to serve file", "path", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func sendBuildError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(BuildErrorMessage))
}

func sendNotFound(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if next != nil {
		next.ServeHTTP(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}
