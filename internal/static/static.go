package static

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"cloudeng.io/logging/ctxlog"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by [Server.Serve] when no file can be served for
// the requested path. Nothing has been written to the response.
var ErrNotFound = errors.New("file not found")

// Server serves files from an [afero.Fs] rooted at the output directory.
type Server struct {
	fs afero.Fs
}

// New creates a [Server] over fsys. Paths passed to [Server.Serve] are
// resolved relative to the root of fsys.
func New(fsys afero.Fs) *Server {
	return &Server{fs: fsys}
}

// NewDir creates a [Server] for the directory dir on the local disk.
// Paths that would escape dir are treated as missing.
func NewDir(dir string) *Server {
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Serve writes the file at name to w.
//
// Only GET and HEAD are served; other methods, directories, dot-files and
// missing files return [ErrNotFound] with nothing written. Any other error
// (e.g. permission denied) is returned with nothing written.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, name string) error {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return ErrNotFound
	}

	name = path.Clean("/" + name)
	if name == "/" || hasDotSegment(name) {
		return ErrNotFound
	}

	fi, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if fi.IsDir() {
		return ErrNotFound
	}

	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
	ctxlog.Logger(r.Context()).Debug("served file", "path", name, "size", fi.Size())
	return nil
}

// hasDotSegment reports whether any segment of p starts with a dot.
func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
