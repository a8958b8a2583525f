package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"nestsync/pkg/ui"
)

var (
	// Version information, overridden at build time via -ldflags
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

// Exit codes: sync failures and config failures are distinguishable so
// cron wrappers can tell a bad config from a bad night.
const (
	exitOK     = 0
	exitSync   = 1
	exitConfig = 2
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nestsync",
	Short: "Archive your children's daycare feed to local storage",
	Long: `NestSync mirrors the Sproutbook daily feed to a local folder.

Features:
  - Incremental sync: each run picks up where the last one stopped
  - Secure session storage using the system keychain
  - Concurrent downloads with configurable limits
  - Smart rate limiting to stay under the vendor's radar
  - EXIF capture dates and captions stamped into every photo
  - Soft asset cap for bounded catch-up runs
  - Desktop notifications when a run finishes

Sessions are stored with 'nestsync auth login'; runs happen with
'nestsync sync'. Point a nightly cron at 'nestsync sync --quiet' and
forget about it.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}

		// Don't show logo for certain commands
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitSync)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .nestsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per event instead of a progress bar")

	// Version template
	rootCmd.SetVersionTemplate(`NestSync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Make sync the default command when no subcommand is specified
func init() {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && !isKnownCommand(args[0]) {
			// A bare child name means sync that child
			return syncCmd.RunE(syncCmd, args)
		}
		return cmd.Help()
	}
	rootCmd.Args = cobra.ArbitraryArgs
}

func isKnownCommand(arg string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == arg || cmd.HasAlias(arg) {
			return true
		}
	}
	return false
}
