// Package server provides the HTTP server for bundleserve.
//
// This package is internal to bundleserve and handles all HTTP concerns
// around the request router:
//
//   - Request routing: every path not claimed below goes to the build-gating
//     router (internal/router)
//   - Status API: JSON snapshot of the build state at "/__bundleserve/status"
//   - Server-Sent Events: build events at "/__bundleserve/events", served
//     with either the status API or live reload
//   - Live reload: the embedded client at "/__bundleserve/reload.js"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the bundleserve library should not need to interact with this
// package directly. The server is started by [bundleserve.Server.Start].
package server
