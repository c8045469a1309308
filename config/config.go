// Package config provides YAML configuration parsing for bundleserve.
//
// This package enables running bundleserve as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	out_dir: dist
//	public_url: /
//	port: 1234
//	live_reload: true
//
//	https:
//	  self_signed: true
//
//	build:
//	  command: npx esbuild src/index.js --bundle --outdir=dist
//	  watch: [src]
//	  ignore: ["**/*.test.js"]
//	  debounce: 100ms
//
//	main_asset:
//	  pattern: "index*.html"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultOutDir    = "dist"
	defaultPublicURL = "/"
	defaultHost      = "localhost"
	defaultPort      = 1234

	// debounce bounds keep rebuilds responsive without thrashing
	minDebounce = 10 * time.Millisecond
	maxDebounce = 10 * time.Second
)

// Config is the root configuration structure for bundleserve.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// OutDir is the bundler's output directory. Defaults to "dist".
	OutDir string `yaml:"out_dir"`

	// PublicURL is the URL prefix for bundled files. Defaults to "/".
	PublicURL string `yaml:"public_url"`

	// Host is the listen host and the host shown in the printed URL.
	// Defaults to "localhost".
	Host string `yaml:"host"`

	// Port is the preferred port. Zero asks for any free port.
	// Defaults to 1234 when omitted.
	Port *int `yaml:"port"`

	// PrefixMatch is "segment" (default) or "raw".
	PrefixMatch string `yaml:"prefix_match"`

	// StatusAPI enables /__bundleserve/status and /__bundleserve/events.
	StatusAPI bool `yaml:"status_api"`

	// LiveReload enables /__bundleserve/reload.js.
	LiveReload bool `yaml:"live_reload"`

	// EnvFile is a dotenv file loaded before environment variable
	// expansion. Variables already set in the environment win.
	EnvFile string `yaml:"env_file"`

	// HTTPS enables TLS. Omit for plain HTTP.
	HTTPS *HTTPSConfig `yaml:"https"`

	// Build configures the bundler command and the source watcher.
	Build BuildConfig `yaml:"build"`

	// MainAsset configures how the entry bundle is located after a build.
	MainAsset MainAssetConfig `yaml:"main_asset"`
}

// HTTPSConfig selects exactly one source of TLS credentials.
type HTTPSConfig struct {
	// Key and Cert are PEM files. Both must be set together.
	Key  string `yaml:"key"`
	Cert string `yaml:"cert"`

	// Pfx is a PKCS#12 bundle holding key and certificate.
	Pfx string `yaml:"pfx"`

	// PfxPassword decrypts Pfx. Supports environment variable substitution.
	PfxPassword string `yaml:"pfx_password"`

	// SelfSigned generates a localhost certificate.
	SelfSigned bool `yaml:"self_signed"`

	// CertDir caches the generated certificate. Defaults to the user cache
	// directory.
	CertDir string `yaml:"cert_dir"`
}

// BuildConfig configures the bundler.
type BuildConfig struct {
	// Command is the bundler command line. Empty disables building; the
	// output directory is served as is.
	Command string `yaml:"command"`

	// Dir is the command's working directory. Defaults to the directory of
	// the configuration file.
	Dir string `yaml:"dir"`

	// Watch lists source directories that trigger a rebuild on change.
	Watch []string `yaml:"watch"`

	// Ignore holds doublestar patterns, relative to each watch directory,
	// that never trigger a rebuild.
	Ignore []string `yaml:"ignore"`

	// Debounce is the quiet period before a burst of changes triggers a
	// build. Defaults to 100ms.
	Debounce Duration `yaml:"debounce"`
}

// MainAssetConfig locates the entry bundle in the output directory.
type MainAssetConfig struct {
	// Type overrides the asset type derived from the file extension.
	Type string `yaml:"type"`

	// Pattern is a doublestar glob relative to the output directory.
	// Defaults to "index*.html".
	Pattern string `yaml:"pattern"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Relative paths in the file (out_dir, env_file, https files, build.dir and
// build.watch) are resolved against the directory containing it.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data, filepath.Dir(path))
}

// Parse parses YAML configuration data. Relative paths are resolved against
// the current directory.
//
// Defaults are applied for OutDir ("dist"), PublicURL ("/"), Host
// ("localhost"), Port (1234) and the main asset pattern ("index*.html").
func Parse(data []byte) (*Config, error) {
	return parse(data, "")
}

func parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.EnvFile != "" {
		envFile := resolve(baseDir, cfg.EnvFile)
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("env_file: failed to load %s: %w", envFile, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	cfg.resolvePaths(baseDir)
	if err := cfg.validateWatchRoots(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OutDir == "" {
		c.OutDir = defaultOutDir
	}
	if c.PublicURL == "" {
		c.PublicURL = defaultPublicURL
	}
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == nil {
		port := defaultPort
		c.Port = &port
	}
	if c.Build.Debounce == 0 {
		c.Build.Debounce = Duration(100 * time.Millisecond)
	}
	if c.MainAsset.Pattern == "" {
		c.MainAsset.Pattern = "index*.html"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	type field struct {
		name string
		ptr  *string
	}
	fields := []field{
		{"out_dir", &c.OutDir},
		{"public_url", &c.PublicURL},
		{"host", &c.Host},
		{"build.command", &c.Build.Command},
		{"build.dir", &c.Build.Dir},
	}
	if c.HTTPS != nil {
		fields = append(fields, []field{
			{"https.key", &c.HTTPS.Key},
			{"https.cert", &c.HTTPS.Cert},
			{"https.pfx", &c.HTTPS.Pfx},
			{"https.pfx_password", &c.HTTPS.PfxPassword},
			{"https.cert_dir", &c.HTTPS.CertDir},
		}...)
	}
	for _, f := range fields {
		expanded, err := expandEnvVars(*f.ptr)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.ptr = expanded
	}
	for i, w := range c.Build.Watch {
		expanded, err := expandEnvVars(w)
		if err != nil {
			return fmt.Errorf("build.watch[%d]: %w", i, err)
		}
		c.Build.Watch[i] = expanded
	}

	if !strings.HasPrefix(c.PublicURL, "/") {
		return fmt.Errorf("public_url must start with \"/\", got %q", c.PublicURL)
	}

	if *c.Port < 0 || *c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", *c.Port)
	}

	switch c.PrefixMatch {
	case "", "segment", "raw":
	default:
		return fmt.Errorf("prefix_match must be \"segment\" or \"raw\", got %q", c.PrefixMatch)
	}

	if c.HTTPS != nil {
		if err := c.HTTPS.validate(); err != nil {
			return err
		}
	}

	if d := c.Build.Debounce.Duration(); d < minDebounce || d > maxDebounce {
		return fmt.Errorf("build.debounce must be between %s and %s, got %s", minDebounce, maxDebounce, d)
	}
	for i, p := range c.Build.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("build.ignore[%d]: invalid pattern %q", i, p)
		}
	}
	for i, w := range c.Build.Watch {
		if w == "" {
			return fmt.Errorf("build.watch[%d]: directory cannot be empty", i)
		}
	}

	if !doublestar.ValidatePattern(c.MainAsset.Pattern) {
		return fmt.Errorf("main_asset.pattern: invalid pattern %q", c.MainAsset.Pattern)
	}

	return nil
}

// validate checks that exactly one credential source is configured.
func (h *HTTPSConfig) validate() error {
	sources := 0
	if h.Key != "" || h.Cert != "" {
		if h.Key == "" || h.Cert == "" {
			return errors.New("https: key and cert must be set together")
		}
		sources++
	}
	if h.Pfx != "" {
		sources++
	}
	if h.SelfSigned {
		sources++
	}

	switch {
	case sources == 0:
		return errors.New("https: one of key/cert, pfx or self_signed is required")
	case sources > 1:
		return errors.New("https: key/cert, pfx and self_signed are mutually exclusive")
	}
	if h.PfxPassword != "" && h.Pfx == "" {
		return errors.New("https: pfx_password requires pfx")
	}
	return nil
}

// resolvePaths makes relative paths relative to baseDir.
func (c *Config) resolvePaths(baseDir string) {
	c.OutDir = resolve(baseDir, c.OutDir)
	if c.Build.Dir == "" {
		c.Build.Dir = baseDir
	} else {
		c.Build.Dir = resolve(baseDir, c.Build.Dir)
	}
	for i, w := range c.Build.Watch {
		c.Build.Watch[i] = resolve(baseDir, w)
	}
	if c.HTTPS != nil {
		for _, p := range []*string{&c.HTTPS.Key, &c.HTTPS.Cert, &c.HTTPS.Pfx, &c.HTTPS.CertDir} {
			if *p != "" {
				*p = resolve(baseDir, *p)
			}
		}
	}
}

// validateWatchRoots rejects a watch root that is the output directory.
// Output there cannot be ignored and every build would trigger the next.
func (c *Config) validateWatchRoots() error {
	out, err := filepath.Abs(c.OutDir)
	if err != nil {
		return fmt.Errorf("out_dir: %w", err)
	}
	for i, w := range c.Build.Watch {
		root, err := filepath.Abs(w)
		if err != nil {
			return fmt.Errorf("build.watch[%d]: %w", i, err)
		}
		if root == out {
			return fmt.Errorf("build.watch[%d]: %q is the output directory", i, w)
		}
	}
	return nil
}

func resolve(baseDir, p string) string {
	if baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
