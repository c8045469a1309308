// Package reload provides the embedded live-reload client for bundleserve.
//
// The client is a small script that subscribes to the build event stream
// (Server-Sent Events) and reloads the page whenever a build succeeds. It is
// served by the internal server package when live reload is enabled; pages
// opt in with:
//
//	<script src="/__bundleserve/reload.js"></script>
package reload

import "embed"

// Assets is an embedded filesystem containing the live-reload client.
//
// The filesystem structure is:
//
//	assets/
//	  reload.js    - EventSource client that reloads on successful builds
//
//go:embed assets/*
var Assets embed.FS
