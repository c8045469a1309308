package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"mvdan.cc/sh/v3/shell"

	"github.com/jpalmerr/bundleserve/build"
)

// killWaitDelay bounds how long a cancelled command's output pipes are
// drained after the process is killed.
const killWaitDelay = 5 * time.Second

// Tracker receives the start and outcome of each build.
type Tracker interface {
	Begin() string
	Complete(res build.Result)
}

// DiscoverFunc locates the main asset in the output directory after a
// build. A nil asset with a nil error means the build produced none.
type DiscoverFunc func(outDir string) (*build.Asset, error)

// Config describes how to run the bundler.
type Config struct {
	// Command is the bundler command line, split into words with shell
	// quoting rules. Environment references such as $NODE_ENV are expanded.
	// An empty command skips execution and only rediscovers the main asset.
	Command string

	// Dir is the working directory of the command. Empty means the current
	// directory.
	Dir string

	// Env holds extra "KEY=value" entries appended to the process
	// environment.
	Env []string

	// OutputDir is the bundler's output directory, searched for the main
	// asset.
	OutputDir string

	// Discover locates the main asset. Defaults to [GlobDiscoverer] with
	// [DefaultMainAssetPattern].
	Discover DiscoverFunc

	// Output receives the command's stdout and stderr. Defaults to
	// [io.Discard].
	Output io.Writer
}

// Runner executes builds one at a time.
//
// The runner builds immediately on start, then once per [Runner.Trigger].
// All lifecycle methods (Start, Stop, Trigger) are safe for concurrent use.
type Runner struct {
	argv     []string
	dir      string
	env      []string
	outDir   string
	discover DiscoverFunc
	output   io.Writer
	tracker  Tracker
	logger   *slog.Logger

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewRunner creates a [Runner] that reports to tracker.
//
// Returns an error if the command cannot be parsed.
func NewRunner(cfg Config, tracker Tracker, logger *slog.Logger) (*Runner, error) {
	if tracker == nil {
		return nil, errors.New("tracker cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var argv []string
	if cfg.Command != "" {
		words, err := shell.Fields(cfg.Command, lookupEnv(cfg.Env))
		if err != nil {
			return nil, fmt.Errorf("invalid build command %q: %w", cfg.Command, err)
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("build command %q has no program", cfg.Command)
		}
		argv = words
	}

	discover := cfg.Discover
	if discover == nil {
		discover = GlobDiscoverer(DefaultMainAssetPattern, "")
	}
	output := cfg.Output
	if output == nil {
		output = io.Discard
	}

	return &Runner{
		argv:     argv,
		dir:      cfg.Dir,
		env:      cfg.Env,
		outDir:   cfg.OutputDir,
		discover: discover,
		output:   output,
		tracker:  tracker,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Start begins the build loop in a background goroutine.
//
// Start is non-blocking. The first build runs immediately; further builds
// run when [Runner.Trigger] is called, until [Runner.Stop] is called or ctx
// is cancelled. Start is idempotent; if Stop was called before Start, Start
// is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.started = true

	buildCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		r.BuildOnce(buildCtx)
		for {
			select {
			case <-buildCtx.Done():
				return
			case <-r.trigger:
				r.BuildOnce(buildCtx)
			}
		}
	}()
}

// Trigger requests a build. It never blocks: if a build request is already
// queued the call is absorbed by it.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Stop halts the build loop and waits for a running build to finish. The
// running command is killed. Stop is idempotent and safe to call before
// Start.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		if r.cancel != nil {
			r.cancel()
		}
	}
	r.mu.Unlock()

	r.wg.Wait()
}

// BuildOnce runs a single build synchronously and returns its outcome. The
// tracker is always completed, even when ctx is cancelled mid-build, so
// requests waiting on the build are released.
func (r *Runner) BuildOnce(ctx context.Context) build.Result {
	id := r.tracker.Begin()
	start := time.Now()
	r.logger.Info("build started", "build_id", id)

	res := r.run(ctx)
	r.tracker.Complete(res)

	attrs := []any{
		"build_id", id,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		r.logger.Error("build failed", append(attrs, "error", res.Err.Error())...)
	} else {
		if res.MainAsset != nil {
			attrs = append(attrs, "main_asset", res.MainAsset.BundleName(true))
		}
		r.logger.Info("build succeeded", attrs...)
	}
	return res
}

func (r *Runner) run(ctx context.Context) build.Result {
	if len(r.argv) > 0 {
		cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
		cmd.Dir = r.dir
		cmd.Env = append(os.Environ(), r.env...)
		cmd.Stdout = r.output
		cmd.Stderr = r.output
		cmd.WaitDelay = killWaitDelay
		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return build.Result{Err: fmt.Errorf("build cancelled: %w", ctx.Err())}
			}
			return build.Result{Err: fmt.Errorf("build command failed: %w", err)}
		}
	}

	main, err := r.safeDiscover()
	if err != nil {
		return build.Result{Err: fmt.Errorf("locating main asset: %w", err)}
	}
	return build.Result{MainAsset: main}
}

// safeDiscover calls the discover function with panic recovery.
// If it panics, the full stack trace is logged with a correlation ID and
// an error containing the ID is returned.
func (r *Runner) safeDiscover() (asset *build.Asset, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			r.logger.Error("main asset discovery panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(stack),
			)

			asset = nil
			err = fmt.Errorf("discovery panic (correlation_id: %s)", correlationID)
		}
	}()
	return r.discover(r.outDir)
}

// lookupEnv resolves variables from extra first, then the process
// environment.
func lookupEnv(extra []string) func(string) string {
	vars := make(map[string]string, len(extra))
	for _, kv := range extra {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	}
}
