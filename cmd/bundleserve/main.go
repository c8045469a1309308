// Package main is the entry point for the bundleserve CLI.
//
// bundleserve can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	bundleserve serve -c bundleserve.yaml    # Build, watch and serve
//	bundleserve validate -c bundleserve.yaml # Validate configuration
//	bundleserve version                      # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "bundleserve",
	Short: "A development server for bundler output",
	Long: `bundleserve is a development server for the output of an asset bundler.

It runs your bundler, rebuilds when sources change, holds browser requests
while a build is in progress and serves the main HTML bundle for any route
outside the public URL, so single page apps can route on the client.

Quick start:
  1. Create a config file (bundleserve.yaml)
  2. Run: bundleserve serve -c bundleserve.yaml
  3. Open http://localhost:1234 in your browser

Example config:
  out_dir: dist
  live_reload: true
  build:
    command: npx esbuild src/index.js --bundle --outdir=dist
    watch: [src]`,
	SilenceUsage: true,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this bundleserve binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "bundleserve %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
