package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/jpalmerr/bundleserve"
	"github.com/jpalmerr/bundleserve/build"
)

func main() {
	// bundles live in memory, written by the mock bundler (see mock_bundler.go)
	fsys := afero.NewMemMapFs()
	tracker := build.NewTracker()

	api := http.NewServeMux()
	api.HandleFunc("/api/hello", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":"hello"}`)
	})

	srv, err := bundleserve.New(
		bundleserve.WithFileSystem(fsys),
		bundleserve.WithBuildStatus(tracker),
		bundleserve.WithPort(8080),
		bundleserve.WithPublicURL("/"),
		bundleserve.WithFallback(api),
		bundleserve.WithStatusAPI(true),
		bundleserve.WithLiveReload(true),
		bundleserve.WithReadyCallback(func(res bundleserve.ListenResult) {
			fmt.Println()
			fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
			fmt.Println("  ║                                                       ║")
			fmt.Println("  ║   bundleserve Demo                                    ║")
			fmt.Println("  ║                                                       ║")
			fmt.Println("  ║   Open the URL above and leave the tab open: pages    ║")
			fmt.Println("  ║   reload after each build, and roughly one build in   ║")
			fmt.Println("  ║   four fails with a 500.                              ║")
			fmt.Println("  ║                                                       ║")
			fmt.Println("  ║   Press Ctrl+C to stop                                ║")
			fmt.Println("  ║                                                       ║")
			fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
			fmt.Println()
		}),
	)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runMockBundler(ctx, fsys, tracker)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
