package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/bundleserve/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a bundleserve configuration file without starting the server.

This command parses the YAML, loads the env_file, expands environment
variables, and validates all fields. TLS credential files are not read.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  bundleserve validate -c bundleserve.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	command := cfg.Build.Command
	if command == "" {
		command = "(none)"
	}
	watchDirs := "(none)"
	if len(cfg.Build.Watch) > 0 {
		watchDirs = strings.Join(cfg.Build.Watch, ", ")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Address:     %s\n", net.JoinHostPort(cfg.Host, strconv.Itoa(*cfg.Port)))
	fmt.Fprintf(out, "  HTTPS:       %s\n", httpsMode(cfg.HTTPS))
	fmt.Fprintf(out, "  Output dir:  %s\n", cfg.OutDir)
	fmt.Fprintf(out, "  Public URL:  %s\n", cfg.PublicURL)
	fmt.Fprintf(out, "  Command:     %s\n", command)
	fmt.Fprintf(out, "  Watch:       %s\n", watchDirs)
	fmt.Fprintf(out, "  Main asset:  %s\n", cfg.MainAsset.Pattern)

	return nil
}

func httpsMode(h *config.HTTPSConfig) string {
	switch {
	case h == nil:
		return "off"
	case h.Key != "":
		return "key/cert"
	case h.Pfx != "":
		return "pfx"
	default:
		return "self-signed"
	}
}
