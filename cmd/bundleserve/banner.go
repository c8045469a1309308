package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/jpalmerr/bundleserve/build"
)

var (
	buildingColor = color.New(color.FgYellow)
	successColor  = color.New(color.FgGreen, color.Bold)
	failureColor  = color.New(color.FgRed, color.Bold)
)

// printBuildEvents writes a console line for every event received on ch
// until ctx is cancelled or ch is closed.
func printBuildEvents(ctx context.Context, ch <-chan build.Event, w io.Writer) error {
	var started time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			switch ev.Type {
			case build.EventStarted:
				started = ev.At
				fmt.Fprintln(w, buildingColor.Sprint("⏳ Building..."))
			case build.EventSucceeded:
				fmt.Fprintln(w, successColor.Sprintf("✨ Built in %s.", elapsed(started, ev.At)))
			case build.EventFailed:
				fmt.Fprintln(w, failureColor.Sprintf("🚨 Build failed: %s", ev.Error))
			}
		}
	}
}

func elapsed(start, end time.Time) time.Duration {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start).Round(time.Millisecond)
}
