// Package builder runs the bundler and reports each build to a tracker.
//
// A [Runner] executes one build at a time. Each build marks the tracker
// pending, runs the configured command, locates the main asset in the
// output directory and completes the tracker with the outcome. Builds are
// requested with [Runner.Trigger]; requests that arrive while a build is
// running collapse into a single follow-up build.
package builder
