// Package build tracks the state of the bundler's current build.
//
// The server never drives a build itself; it only observes whether a build is
// pending or has errored, which asset is the main entry bundle, and when the
// in-flight build finishes. This package provides that view.
//
// The main components are:
//
//   - [Tracker]: Thread-safe build state with a one-shot completion signal per
//     build cycle and pub/sub of build events
//   - [Status]: Snapshot of the tracker's state
//   - [Asset]: The main entry bundle, used for single-page fallback routing
//   - [Event]: Notification published when a build starts or finishes
//
// A build cycle starts with [Tracker.Begin] and ends with [Tracker.Complete].
// Every goroutine that called [Tracker.Done] during the cycle is released at
// the same moment when the cycle ends, since the returned channel is closed
// rather than sent on.
package build
