package config

import (
	"io"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jpalmerr/bundleserve"
)

func newServer(t *testing.T, cfg *Config) *bundleserve.Server {
	t.Helper()
	srv, err := bundleserve.New(BuildOptions(cfg)...)
	if err != nil {
		t.Fatalf("bundleserve.New() error = %v", err)
	}
	return srv
}

func TestBuildOptions_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}

	srv := newServer(t, cfg)
	if srv.Port() != 1234 {
		t.Errorf("Port() = %d, want 1234", srv.Port())
	}
	if srv.Host() != "localhost" {
		t.Errorf("Host() = %q, want localhost", srv.Host())
	}
	if srv.PublicURL() != "/" {
		t.Errorf("PublicURL() = %q, want /", srv.PublicURL())
	}
	if srv.Scheme() != "http" {
		t.Errorf("Scheme() = %q, want http", srv.Scheme())
	}
}

func TestBuildOptions_AllFields(t *testing.T) {
	yaml := `
out_dir: build
public_url: /static/
host: 127.0.0.1
port: 0
prefix_match: raw
status_api: true
live_reload: true
https:
  self_signed: true
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}

	srv := newServer(t, cfg)
	if srv.Port() != 0 {
		t.Errorf("Port() = %d, want 0", srv.Port())
	}
	if srv.Host() != "127.0.0.1" {
		t.Errorf("Host() = %q, want 127.0.0.1", srv.Host())
	}
	if srv.PublicURL() != "/static/" {
		t.Errorf("PublicURL() = %q, want /static/", srv.PublicURL())
	}
	if srv.Scheme() != "https" {
		t.Errorf("Scheme() = %q, want https", srv.Scheme())
	}
}

func TestBuildTLS(t *testing.T) {
	tests := []struct {
		name  string
		https *HTTPSConfig
		want  bundleserve.TLS
	}{
		{"none", nil, nil},
		{"key cert", &HTTPSConfig{Key: "k.pem", Cert: "c.pem"}, bundleserve.KeyCert("k.pem", "c.pem")},
		{"pfx", &HTTPSConfig{Pfx: "dev.pfx", PfxPassword: "pw"}, bundleserve.Pfx("dev.pfx", "pw")},
		{"self signed", &HTTPSConfig{SelfSigned: true, CertDir: "certs"}, bundleserve.SelfSigned("certs")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTLS(tt.https); got != tt.want {
				t.Errorf("buildTLS() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBuildRunnerConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
out_dir: dist
build:
  command: npm run build
  dir: web
main_asset:
  pattern: "app*.html"
`))
	if err != nil {
		t.Fatal(err)
	}

	rc := BuildRunnerConfig(cfg, io.Discard)
	if rc.Command != "npm run build" || rc.Dir != "web" || rc.OutputDir != "dist" {
		t.Errorf("runner config = %+v", rc)
	}
	if rc.Discover == nil {
		t.Error("Discover = nil, want glob discoverer")
	}
	if rc.Output != io.Discard {
		t.Error("Output not passed through")
	}
}

func TestConfig_IgnorePatterns(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		OutDir: filepath.Join(root, "web", "dist"),
		Build: BuildConfig{
			Watch:  []string{filepath.Join(root, "web"), filepath.Join(root, "other")},
			Ignore: []string{"**/*.test.js"},
		},
	}

	got := cfg.IgnorePatterns()
	want := []string{"**/*.test.js", "dist"}
	if !slices.Equal(got, want) {
		t.Errorf("IgnorePatterns() = %v, want %v", got, want)
	}

	// the configured slice is not modified
	if len(cfg.Build.Ignore) != 1 {
		t.Errorf("Build.Ignore mutated: %v", cfg.Build.Ignore)
	}
}
