package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// Options configures a [Watcher].
type Options struct {
	// Roots are the directories to watch recursively. At least one is
	// required.
	Roots []string

	// Ignore holds doublestar patterns matched against paths relative to
	// the root they are under, using forward slashes. A pattern matching a
	// directory also excludes everything beneath it, e.g. "node_modules" or
	// "**/node_modules".
	Ignore []string

	// Debounce is the quiet period after the last event before OnChange
	// runs. Defaults to [DefaultDebounce].
	Debounce time.Duration

	// OnChange receives the sorted, de-duplicated paths changed during a
	// burst. It runs on the watcher's goroutine; a slow callback delays
	// the next burst rather than overlapping with it.
	OnChange func(paths []string)

	Logger *slog.Logger
}

// Watcher watches source directories and reports debounced changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []string
	ignore   []string
	debounce time.Duration
	onChange func([]string)
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a [Watcher] and registers every directory under the roots.
//
// Returns an error if a root cannot be read or an ignore pattern is
// invalid.
func New(opts Options) (*Watcher, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("at least one watch root is required")
	}
	if opts.OnChange == nil {
		return nil, errors.New("change callback cannot be nil")
	}
	for _, p := range opts.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	roots := make([]string, 0, len(opts.Roots))
	for _, r := range opts.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolving watch root %q: %w", r, err)
		}
		roots = append(roots, abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		roots:    roots,
		ignore:   opts.Ignore,
		debounce: debounce,
		onChange: opts.OnChange,
		logger:   logger,
	}
	for _, r := range roots {
		if err := w.addTree(r); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run processes events until ctx is cancelled, then releases the watcher.
// Run may be called only once.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer w.fsw.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]struct{})
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)

			w.logger.Debug("source change detected", "paths", len(paths))
			w.onChange(paths)
		}
	}
}

// handle reports whether ev counts as a change, watching directories as
// they appear.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
		return false
	}
	if w.ignored(ev.Name) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
		}
	}
	return true
}

// addTree watches dir and every directory beneath it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// directories can vanish between the event and the walk
			if errors.Is(err, fs.ErrNotExist) && p != dir {
				return nil
			}
			return fmt.Errorf("walking %s: %w", p, err)
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignored(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// ignored reports whether p, or a directory above it, matches an ignore
// pattern relative to its root.
func (w *Watcher) ignored(p string) bool {
	if len(w.ignore) == 0 {
		return false
	}
	rel, ok := w.relative(p)
	if !ok || rel == "." {
		return false
	}

	// check p and each of its parents so a directory pattern covers its
	// contents
	segments := strings.Split(rel, "/")
	for i := range segments {
		candidate := strings.Join(segments[:i+1], "/")
		for _, pattern := range w.ignore {
			if matched, _ := doublestar.Match(pattern, candidate); matched {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) relative(p string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}
