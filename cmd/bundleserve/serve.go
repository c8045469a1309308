package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/bundleserve"
	"github.com/jpalmerr/bundleserve/build"
	"github.com/jpalmerr/bundleserve/config"
	"github.com/jpalmerr/bundleserve/internal/builder"
	"github.com/jpalmerr/bundleserve/internal/watch"
)

// serveCmd builds, watches and serves the bundle.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build, watch and serve the bundle",
	Long: `Start the bundleserve development server.

The server will:
  - Load configuration from the specified YAML file
  - Bind the configured port, or any free port if it is taken
  - Run the build command once, then again whenever watched sources change
  - Hold requests while a build is running and answer 500 if it failed

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  bundleserve serve -c bundleserve.yaml
  bundleserve serve -c bundleserve.yaml --port 3000 --out build`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().IntP("port", "p", 0, "preferred port, overrides the config file (0 for any free port)")
	serveCmd.Flags().StringP("out", "o", "", "output directory, overrides the config file")
	serveCmd.Flags().String("public-url", "", "public URL prefix, overrides the config file")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	logger.Info("config loaded",
		"out_dir", cfg.OutDir,
		"public_url", cfg.PublicURL,
		"build_command", cfg.Build.Command,
		"watch", cfg.Build.Watch,
	)

	tracker := build.NewTracker()

	opts := append(config.BuildOptions(cfg),
		bundleserve.WithBuildStatus(tracker),
		bundleserve.WithLogger(logger),
		bundleserve.WithStatusWriter(color.Output),
	)
	srv, err := bundleserve.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	runner, err := builder.NewRunner(config.BuildRunnerConfig(cfg, cmd.ErrOrStderr()), tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to create build runner: %w", err)
	}

	var watcher *watch.Watcher
	if len(cfg.Build.Watch) > 0 {
		watcher, err = watch.New(watch.Options{
			Roots:    cfg.Build.Watch,
			Ignore:   cfg.IgnorePatterns(),
			Debounce: cfg.Build.Debounce.Duration(),
			OnChange: func(paths []string) {
				logger.Info("sources changed", "files", len(paths))
				runner.Trigger()
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("failed to watch sources: %w", err)
		}
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, srv, runner, watcher, tracker, logger)
}

// serve binds the server before the first build so credential and port
// problems surface immediately, then runs every component until ctx is
// cancelled or one of them fails.
func serve(ctx context.Context, srv *bundleserve.Server, runner *builder.Runner, watcher *watch.Watcher, tracker *build.Tracker, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	// subscribe before the first build starts so its banner is not missed
	events := tracker.Subscribe()
	defer tracker.Unsubscribe(events)

	// requests arriving before the runner starts wait for the first build;
	// the runner's Begin joins this pending build
	tracker.Begin()

	ls, err := srv.Start(gctx)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	g.Go(func() error {
		return printBuildEvents(gctx, events, color.Output)
	})

	runner.Start(gctx)

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		if err := ls.Wait(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	err = g.Wait()
	runner.Stop()
	if err == nil {
		logger.Info("shutdown complete")
	}
	return err
}

// applyFlagOverrides replaces config values with explicitly set flags.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		port, _ := flags.GetInt("port")
		cfg.Port = &port
	}
	if flags.Changed("out") {
		cfg.OutDir, _ = flags.GetString("out")
	}
	if flags.Changed("public-url") {
		cfg.PublicURL, _ = flags.GetString("public-url")
	}
}
