package bundleserve

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrNoCredentials is returned when HTTPS is requested without any way to
// obtain a certificate.
var ErrNoCredentials = errors.New("https requires a key and certificate, a pfx bundle, or self-signed mode")

// CredentialLoadError reports a TLS credential file that could not be read
// or parsed. It is fatal: the server never falls back to plain HTTP.
type CredentialLoadError struct {
	// Mode is the TLS variant being loaded, e.g. "key-cert" or "pfx".
	Mode string

	// Path is the file that failed.
	Path string

	Err error
}

func (e *CredentialLoadError) Error() string {
	return fmt.Sprintf("failed to load %s credentials from %s: %v", e.Mode, e.Path, e.Err)
}

func (e *CredentialLoadError) Unwrap() error {
	return e.Err
}

// ListenError reports a failure to bind or serve on a port.
type ListenError struct {
	// Port is the port that was attempted.
	Port int

	Err error
}

func (e *ListenError) Error() string {
	return e.Describe()
}

func (e *ListenError) Unwrap() error {
	return e.Err
}

// Describe returns a human readable description naming the port.
func (e *ListenError) Describe() string {
	switch {
	case errors.Is(e.Err, syscall.EACCES):
		return fmt.Sprintf("You don't have access to bind the server to port %d.", e.Port)
	case errors.Is(e.Err, syscall.EADDRINUSE):
		return fmt.Sprintf("There is already a process listening on port %d.", e.Port)
	default:
		return fmt.Sprintf("Error: %v occurred while setting up server on port %d.", e.Err, e.Port)
	}
}
