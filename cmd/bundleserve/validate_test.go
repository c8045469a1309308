package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// executeValidateCmd runs the validate command with the given config path
// and returns captured stdout and any error.
func executeValidateCmd(t *testing.T, configPath string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"validate", "-c", configPath})
	err := rootCmd.Execute()

	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundleserve.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestRunValidate_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
out_dir: dist
public_url: /static/
port: 8080
https:
  self_signed: true
build:
  command: npm run build
  watch: [src]
`)

	output, err := executeValidateCmd(t, configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Address:     localhost:8080",
		"HTTPS:       self-signed",
		"Public URL:  /static/",
		"Command:     npm run build",
		"Main asset:  index*.html",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_Defaults(t *testing.T) {
	configPath := writeConfig(t, "{}\n")

	output, err := executeValidateCmd(t, configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, phrase := range []string{
		"Address:     localhost:1234",
		"HTTPS:       off",
		"Command:     (none)",
		"Watch:       (none)",
	} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `
port: 70000
`)

	output, err := executeValidateCmd(t, configPath)
	if err == nil {
		t.Fatal("validate command error = nil, want error")
	}
	if !strings.Contains(err.Error(), "port") {
		t.Errorf("error = %v, want mention of port", err)
	}
	if strings.Contains(output, "Config is valid!") {
		t.Error("output should not claim the config is valid")
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeValidateCmd(t, filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("validate command error = nil, want error")
	}
}

func TestHTTPSMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		want string
	}{
		{"off", "{}", "off"},
		{"key cert", "https: {key: k.pem, cert: c.pem}", "key/cert"},
		{"pfx", "https: {pfx: dev.pfx}", "pfx"},
		{"self signed", "https: {self_signed: true}", "self-signed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeValidateCmd(t, writeConfig(t, tt.cfg))
			if err != nil {
				t.Fatalf("validate command error = %v", err)
			}
			if !strings.Contains(output, "HTTPS:       "+tt.want+"\n") {
				t.Errorf("output = %s, want HTTPS mode %q", output, tt.want)
			}
		})
	}
}
