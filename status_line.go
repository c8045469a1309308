package bundleserve

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	urlColor     = color.New(color.FgCyan, color.Bold)
	warningColor = color.New(color.FgRed)
)

// writeStatusLine prints the persistent "Server running at" line. Colours
// are dropped automatically when the output is not a terminal.
func writeStatusLine(w io.Writer, res ListenResult) {
	line := "Server running at " + urlColor.Sprint(res.URL())
	if res.PortChanged() {
		line += warningColor.Sprintf(" - configured port %d could not be used.", res.PreferredPort)
	}
	fmt.Fprintln(w, line)
}
