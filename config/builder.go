package config

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/jpalmerr/bundleserve"
	"github.com/jpalmerr/bundleserve/internal/builder"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The build status provider, logger and status writer are not part of the
// file and are added by the caller.
func BuildOptions(cfg *Config) []bundleserve.Option {
	opts := []bundleserve.Option{
		bundleserve.WithOutputDir(cfg.OutDir),
		bundleserve.WithPublicURL(cfg.PublicURL),
		bundleserve.WithHost(cfg.Host),
		bundleserve.WithStatusAPI(cfg.StatusAPI),
		bundleserve.WithLiveReload(cfg.LiveReload),
	}

	if cfg.Port != nil {
		opts = append(opts, bundleserve.WithPort(*cfg.Port))
	}
	if cfg.PrefixMatch != "" {
		opts = append(opts, bundleserve.WithPrefixMatch(cfg.PrefixMatch))
	}
	if tls := buildTLS(cfg.HTTPS); tls != nil {
		opts = append(opts, bundleserve.WithTLS(tls))
	}

	return opts
}

// buildTLS converts HTTPSConfig to a TLS mode. Returns nil for plain HTTP.
func buildTLS(h *HTTPSConfig) bundleserve.TLS {
	switch {
	case h == nil:
		return nil
	case h.Key != "":
		return bundleserve.KeyCert(h.Key, h.Cert)
	case h.Pfx != "":
		return bundleserve.Pfx(h.Pfx, h.PfxPassword)
	case h.SelfSigned:
		return bundleserve.SelfSigned(h.CertDir)
	default:
		// validation should catch this
		return nil
	}
}

// BuildRunnerConfig converts the build and main asset sections into a
// runner configuration. Command output is written to output.
func BuildRunnerConfig(cfg *Config, output io.Writer) builder.Config {
	return builder.Config{
		Command:   cfg.Build.Command,
		Dir:       cfg.Build.Dir,
		OutputDir: cfg.OutDir,
		Discover:  builder.GlobDiscoverer(cfg.MainAsset.Pattern, cfg.MainAsset.Type),
		Output:    output,
	}
}

// IgnorePatterns returns the configured ignore patterns plus one for the
// output directory under each watch root, so writing a build never
// triggers another.
func (c *Config) IgnorePatterns() []string {
	patterns := append([]string(nil), c.Build.Ignore...)

	outAbs, err := filepath.Abs(c.OutDir)
	if err != nil {
		return patterns
	}
	for _, root := range c.Build.Watch {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, outAbs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		patterns = append(patterns, filepath.ToSlash(rel))
	}
	return patterns
}
