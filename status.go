package bundleserve

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jpalmerr/bundleserve/build"
)

// BuildStatusProvider reports the state of the bundler.
//
// Status returns a snapshot of the current build. Done returns a channel
// that is closed when the build in progress at the time of the call
// completes; every request waiting on the same build observes the same
// close. [build.Tracker] is the reference implementation.
//
// A provider that also implements Subscribe and Unsubscribe for
// [build.Event] values backs the event stream and live reload.
type BuildStatusProvider interface {
	Status() build.Status
	Done() <-chan struct{}
}

// ListenResult describes the socket a [Server] ended up bound to.
type ListenResult struct {
	// Host is the configured host, used for both the listen address and the
	// printed URL.
	Host string

	// Port is the port actually bound.
	Port int

	// PreferredPort is the configured port. Zero means any port.
	PreferredPort int

	// Scheme is "http" or "https".
	Scheme string
}

// URL returns the address browsers should use, e.g. "http://localhost:1234".
func (r ListenResult) URL() string {
	return fmt.Sprintf("%s://%s", r.Scheme, net.JoinHostPort(r.Host, strconv.Itoa(r.Port)))
}

// PortChanged reports whether a non-zero preferred port could not be used.
func (r ListenResult) PortChanged() bool {
	return r.PreferredPort != 0 && r.Port != r.PreferredPort
}
