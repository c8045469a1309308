package router

import (
	"fmt"
	"strings"
)

// PrefixMatch selects how a request path is tested against the public URL.
type PrefixMatch int

const (
	// PrefixSegment matches whole path segments: with public URL "/public",
	// "/public" and "/public/app.js" are inside, "/publicity" is not.
	PrefixSegment PrefixMatch = iota

	// PrefixRaw is a plain string prefix test: "/publicity" is inside
	// "/public" and is looked up as "ity".
	PrefixRaw
)

// String returns the configuration name of the mode.
func (m PrefixMatch) String() string {
	switch m {
	case PrefixSegment:
		return "segment"
	case PrefixRaw:
		return "raw"
	default:
		return fmt.Sprintf("PrefixMatch(%d)", int(m))
	}
}

// ParsePrefixMatch parses "segment" or "raw". Empty selects [PrefixSegment].
func ParsePrefixMatch(s string) (PrefixMatch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "segment":
		return PrefixSegment, nil
	case "raw":
		return PrefixRaw, nil
	default:
		return PrefixSegment, fmt.Errorf("unknown prefix match %q (expected 'segment' or 'raw')", s)
	}
}

type prefix struct {
	value string
	mode  PrefixMatch
}

func newPrefix(publicURL string, mode PrefixMatch) prefix {
	if publicURL == "" {
		publicURL = "/"
	}
	return prefix{value: publicURL, mode: mode}
}

// strip reports whether p is inside the public URL and returns the
// remainder to look up.
func (px prefix) strip(p string) (string, bool) {
	if px.mode == PrefixRaw || px.value == "/" {
		if !strings.HasPrefix(p, px.value) {
			return "", false
		}
		return p[len(px.value):], true
	}

	base := strings.TrimSuffix(px.value, "/")
	switch {
	case p == base:
		return "", true
	case strings.HasPrefix(p, base+"/"):
		return p[len(base):], true
	default:
		return "", false
	}
}
