// Package bundleserve provides a development HTTP(S) server that fronts the
// output directory of an asset bundler.
//
// Requests are held while a build is in progress and released together when
// it completes. A failed build answers every request with a 500 and a short
// banner. Files under the public URL are served from the output directory;
// any other path receives the main HTML bundle, so single page applications
// can route on the client.
//
// # Quick Start
//
// Serve a directory with graceful shutdown:
//
//	srv, _ := bundleserve.New(bundleserve.WithOutputDir("dist"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	srv.Run(ctx) // blocks until context is cancelled
//
// # Build State
//
// The server reads build state through [BuildStatusProvider]. The
// [build.Tracker] type implements it; a bundler integration calls
// [build.Tracker.Begin] when a build starts and [build.Tracker.Complete]
// when it ends:
//
//	tracker := build.NewTracker()
//	srv, _ := bundleserve.New(
//	    bundleserve.WithOutputDir("dist"),
//	    bundleserve.WithBuildStatus(tracker),
//	)
//
//	tracker.Begin()
//	// ... run the bundler ...
//	tracker.Complete(build.Result{MainAsset: &build.Asset{Type: "html", Name: "index.html", Hash: "a1b2"}})
//
// # Ports and TLS
//
// The server prefers the port given to [WithPort] (1234 by default) and
// falls back to any free port when it is taken. The status line printed on
// startup names the port actually used:
//
//	Server running at http://localhost:1234
//
// HTTPS is enabled with [WithKeyCert], [WithPfx] or [WithSelfSignedTLS].
// Credentials are read before any socket is opened; if they cannot be
// loaded [Server.Start] fails rather than serving plain HTTP.
//
// # Live Reload
//
// [WithStatusAPI] exposes the build status as JSON at
// /__bundleserve/status and as a Server-Sent Events stream at
// /__bundleserve/events. [WithLiveReload] serves a script at
// /__bundleserve/reload.js that reloads the page after each successful
// build, together with the event stream it listens to:
//
//	<script src="/__bundleserve/reload.js"></script>
package bundleserve
