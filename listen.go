package bundleserve

import (
	"context"
	"log/slog"
	"net"
	"strconv"
)

// listen binds host:preferred, falling back to an OS assigned port when the
// preferred one is unavailable. The returned listener is already bound, so
// the negotiated port cannot be taken by another process in between.
func listen(ctx context.Context, host string, preferred int, logger *slog.Logger) (net.Listener, int, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(preferred)))
	if err != nil {
		if preferred == 0 {
			return nil, 0, &ListenError{Port: preferred, Err: err}
		}
		logger.Debug("preferred port unavailable", "port", preferred, "error", err)

		ln, err = lc.Listen(ctx, "tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return nil, 0, &ListenError{Port: preferred, Err: err}
		}
	}

	return ln, boundPort(ln), nil
}

func boundPort(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	_, p, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(p)
	return port
}
