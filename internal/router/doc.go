// Package router implements the build-gating request router.
//
// This package is internal to bundleserve. For every request the [Router]
// decides between four outcomes:
//
//   - Build error: 500 with a fixed plain-text banner
//   - Index fallback: the main HTML bundle for paths outside the public URL
//   - Static file: the requested file with the public URL stripped
//   - Not found: a bare 404, or the next handler when one is configured
//
// Requests that arrive while a build is pending are held until the build
// completes; all held requests are released together.
package router
