package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nestsync/pkg/config"
	"nestsync/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Inspect, validate, and bootstrap NestSync configuration files.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter configuration file",
	Long: `Write a commented starter configuration to .nestsync.yaml (or the
given path). Existing files are never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ".nestsync.yaml"
		if configFile != "" {
			path = configFile
		}
		if len(args) > 0 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil {
			ui.PrintError("%s already exists, not overwriting", path)
			os.Exit(exitConfig)
		}

		if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
			ui.PrintError("Failed to write %s: %v", path, err)
			os.Exit(exitConfig)
		}

		ui.PrintSuccess(fmt.Sprintf("Wrote %s", path))
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  1. Store your session:  nestsync auth login")
		fmt.Printf("  2. Adjust the defaults: $EDITOR %s\n", path)
		fmt.Println("  3. Run your first sync: nestsync sync")
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Print the merged configuration with sensitive values masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			ui.PrintError("Failed to load configuration: %v", err)
			os.Exit(exitConfig)
		}

		// Never echo the raw cookie, even to a terminal
		display := *cfg
		if display.Service.SessionCookie != "" {
			display.Service.SessionCookie = maskValue(display.Service.SessionCookie)
		}

		data, err := yaml.Marshal(&display)
		if err != nil {
			ui.PrintError("Failed to render configuration: %v", err)
			os.Exit(exitConfig)
		}

		fmt.Println("Effective configuration:")
		fmt.Println()
		fmt.Print(string(data))
		fmt.Println()
		fmt.Println("Sources, highest precedence first:")
		fmt.Println("  1. Command line flags")
		fmt.Println("  2. Environment variables (NESTSYNC_*)")
		fmt.Println("  3. .env file in the working directory")
		fmt.Println("  4. Configuration file")
		fmt.Println("  5. Built-in defaults")
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long:  `Load the configuration the same way 'sync' would and report problems.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			ui.PrintError("Configuration is invalid: %v", err)
			os.Exit(exitConfig)
		}

		ui.PrintSuccess("Configuration is valid")
		fmt.Println()
		ui.PrintInfo("Service URL", cfg.Service.BaseURL)
		ui.PrintInfo("Page size", fmt.Sprintf("%d notes per page", cfg.Sync.PageSize))
		ui.PrintInfo("Downloads", fmt.Sprintf("%d concurrent, %s timeout",
			cfg.Download.ConcurrentDownloads, cfg.Download.DownloadTimeout))
		ui.PrintInfo("Rate limit", fmt.Sprintf("%d requests/minute, burst %d",
			cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize))
		ui.PrintInfo("Asset cap", describeCap(cfg.Sync.AssetCap))
		ui.PrintInfo("Output", cfg.Output.BaseDirectory)
		if cfg.Sync.StateFile != "" {
			ui.PrintInfo("State file", cfg.Sync.StateFile)
		} else {
			ui.PrintInfo("State file", "platform data directory")
		}
		if cfg.Sync.Start != "" || cfg.Sync.End != "" {
			ui.PrintInfo("Window", describeWindow(cfg.Sync.Start, cfg.Sync.End))
		}

		fmt.Println()
		if cfg.Service.SessionCookie == "" {
			ui.PrintWarning("No session cookie in this configuration. Runs will use the keychain ('nestsync auth login') or NESTSYNC_SESSION_COOKIE.")
		}
		if cfg.Service.AccountID == "" {
			ui.PrintWarning("No account id in this configuration. Runs will take it from the stored session or NESTSYNC_ACCOUNT_ID.")
		}
		if cfg.Stamping.Enabled {
			binary := cfg.Stamping.ExiftoolBinary
			if binary == "" {
				binary = "exiftool"
			}
			if found, err := exec.LookPath(binary); err != nil {
				ui.PrintWarning("%s not found on PATH. Media will be delivered without embedded capture dates.", binary)
			} else {
				ui.PrintInfo("Stamping", "enabled, exiftool at "+found)
			}
		} else {
			ui.PrintInfo("Stamping", "disabled")
		}
	},
}

func describeCap(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d assets per enrollment per run", n)
}

func describeWindow(start, end string) string {
	switch {
	case start != "" && end != "":
		return start + " to " + end
	case start != "":
		return "from " + start
	default:
		return "until " + end
	}
}

// maskValue hides the middle of a secret, keeping just enough to
// recognize which value is stored.
func maskValue(s string) string {
	if len(s) <= 12 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

// exampleConfig is the starter file written by 'config init'. Every key
// matches the yaml tags in pkg/config.
const exampleConfig = `# NestSync configuration
#
# Any value here can be overridden by a NESTSYNC_* environment variable
# or a command line flag. Durations use Go syntax: 30s, 1500ms, 2m.

service:
  # API host. Leave as-is unless your school runs a regional instance.
  base_url: https://app.getsproutbook.com

  # Numeric account id from the web app URL. Usually filled in from the
  # stored session, so it can stay empty here.
  account_id: ""

  # Session cookie value. Prefer 'nestsync auth login' over writing it
  # here: this file is plain text.
  session_cookie: ""

  # Feed categories to sync.
  categories:
    - note
    - photo
    - video

  request_timeout: 30s

sync:
  # Optional sync window, inclusive on both ends. Accepts "2024-01-01"
  # or "2024-01-01 15:04:05". An empty start resumes from the watermark
  # left by the previous run.
  start: ""
  end: ""

  # Notes per feed page.
  page_size: 100

  # Hard brake on pages per enrollment per run. 0 means no limit.
  max_pages: 0

  # Pause between feed pages.
  page_delay: 1500ms

  retry_attempts: 3
  retry_delay: 5s

  # Soft cap on new assets per enrollment per run. The newest ones past
  # the cap wait for the next run. 0 means unlimited.
  asset_cap: 0

  # IANA timezone for reading feed timestamps, e.g. America/New_York.
  # Empty uses each enrollment's own zone.
  timezone: ""

  # Watermark state file. Empty uses the platform data directory.
  state_file: ""

rate_limit:
  requests_per_minute: 60
  burst_size: 10

download:
  concurrent_downloads: 3
  download_timeout: 60s
  skip_videos: false
  skip_images: false

stamping:
  # Stamp capture dates and captions into downloaded media. Needs
  # exiftool installed; set exiftool_binary for a non-PATH install.
  enabled: true
  exiftool_binary: ""

output:
  base_directory: ./nestsync-media
  create_child_folders: true

logging:
  # debug, info, warn, error
  level: info
  # Optional log file. Empty logs to the console only.
  file: ""
`
