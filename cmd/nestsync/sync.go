package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nestsync/internal/downloader"
	"nestsync/pkg/auth"
	"nestsync/pkg/config"
	errs "nestsync/pkg/errors"
	"nestsync/pkg/logger"
	"nestsync/pkg/sproutbook"
	"nestsync/pkg/stamp"
	"nestsync/pkg/syncer"
	"nestsync/pkg/ui"
	"nestsync/pkg/ui/tui"
)

var (
	// Sync command flags
	outputDir     string
	concurrent    int
	pageSize      int
	maxPages      int
	assetCap      int
	startAt       string
	endAt         string
	timezone      string
	stateFile     string
	accountID     string
	sessionLabel  string
	sessionCookie string
	skipVideos    bool
	skipImages    bool
	dryRun        bool
	useTUI        bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [child...]",
	Short: "Sync the daycare feed to local storage",
	Long: `Sync every enrollment's notes feed to the local archive.

Each run resumes after the watermark the previous run left behind, so
only new notes are fetched. Pass child names to sync a subset of the
enrollments; with no arguments every enrollment under the account is
synced.

A session must be available through one of:
  - Stored sessions (use 'nestsync auth login' to store)
  - Environment variables (NESTSYNC_SESSION_COOKIE and NESTSYNC_ACCOUNT_ID)
  - Configuration file`,
	Example: `  # Sync everything since the last run
  nestsync sync

  # Sync one child into a specific folder
  nestsync sync Emma --output ~/Pictures/daycare

  # Bounded catch-up: at most 200 oldest assets this run
  nestsync sync --asset-cap 200

  # Preview without downloading or advancing watermarks
  nestsync sync --dry-run

  # Backfill a fixed window
  nestsync sync --start "2024-01-01 00:00:00" --end "2024-03-31 23:59:59"`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runSync(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	// Local flags for sync command
	syncCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	syncCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	syncCmd.Flags().IntVar(&pageSize, "page-size", 0, "notes per feed page")
	syncCmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages per enrollment (0 = no limit)")
	syncCmd.Flags().IntVar(&assetCap, "asset-cap", -1, "keep only the N oldest assets this run (0 = unlimited)")
	syncCmd.Flags().StringVar(&startAt, "start", "", "sync notes at or after this local time (YYYY-MM-DD HH:MM:SS)")
	syncCmd.Flags().StringVar(&endAt, "end", "", "sync notes at or before this local time (YYYY-MM-DD HH:MM:SS)")
	syncCmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone overriding the enrollment zones")
	syncCmd.Flags().StringVar(&stateFile, "state-file", "", "watermark state file location")
	syncCmd.Flags().StringVarP(&accountID, "account", "a", "", "Sproutbook account id")
	syncCmd.Flags().StringVarP(&sessionLabel, "session", "s", "", "use a specific stored session")
	syncCmd.Flags().StringVar(&sessionCookie, "session-cookie", "", "raw session cookie value")
	syncCmd.Flags().BoolVar(&skipVideos, "skip-videos", false, "do not download videos")
	syncCmd.Flags().BoolVar(&skipImages, "skip-images", false, "do not download images")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be downloaded without touching the network for media")
	syncCmd.Flags().BoolVar(&useTUI, "tui", false, "full-screen dashboard with live progress")

	// The same flags on the root command so 'nestsync Emma --dry-run'
	// parses without the sync verb
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	rootCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	rootCmd.Flags().IntVar(&assetCap, "asset-cap", -1, "keep only the N oldest assets this run (0 = unlimited)")
	rootCmd.Flags().StringVarP(&sessionLabel, "session", "s", "", "use a specific stored session")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be downloaded without touching the network for media")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "full-screen dashboard with live progress")
}

func runSync(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if maxPages > 0 {
		flags["max-pages"] = maxPages
	}
	if assetCap >= 0 {
		flags["asset-cap"] = assetCap
	}
	if startAt != "" {
		flags["start"] = startAt
	}
	if endAt != "" {
		flags["end"] = endAt
	}
	if timezone != "" {
		flags["timezone"] = timezone
	}
	if stateFile != "" {
		flags["state-file"] = stateFile
	}
	if accountID != "" {
		flags["account"] = accountID
	}
	if sessionCookie != "" {
		flags["session-cookie"] = sessionCookie
	}
	if skipVideos {
		flags["skip-videos"] = true
	}
	if skipImages {
		flags["skip-images"] = true
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(exitConfig)
	}

	// Initialize logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintWarning("Failed to initialize logging", err.Error())
	}
	logger.WithField("version", version).Info("NestSync starting")

	// Resolve the session
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session manager", err.Error())
		os.Exit(exitConfig)
	}

	var session *auth.Session
	if sessionLabel != "" {
		// Use specific stored session
		session, err = manager.Retrieve(sessionLabel)
		if err != nil {
			ui.PrintError("Session not found", sessionLabel)
			ui.PrintInfo("Stored sessions", "Use 'nestsync auth list' to see them")
			os.Exit(exitConfig)
		}
	} else if cfg.Service.SessionCookie != "" && cfg.Service.AccountID != "" {
		// The config, environment, or flags already carry a full session
		logger.Info("Using session from configuration")
	} else {
		// Fall back to the default stored session
		session, err = manager.RetrieveDefault()
		if err != nil {
			logger.Error("No session found")
			ui.PrintError("No Sproutbook session found", "")
			fmt.Println("\nTo store a session securely, run:")
			fmt.Println("  nestsync auth login")
			fmt.Println("\nYou can also provide the session through environment variables:")
			fmt.Println("  export NESTSYNC_SESSION_COOKIE=your_cookie_value")
			fmt.Println("  export NESTSYNC_ACCOUNT_ID=your_account_id")
			os.Exit(exitConfig)
		}
	}

	if session != nil {
		cfg.Service.SessionCookie = session.Cookie
		// An explicit --account flag still wins over the stored session
		if accountID == "" && session.AccountID != "" {
			cfg.Service.AccountID = session.AccountID
		}
		if session.UserAgent != "" {
			cfg.Service.UserAgent = session.UserAgent
		}
		logger.WithField("session", session.Label).Info("Using stored session")
		ui.PrintInfo("Using session", session.Label)
	}

	// Final session validation
	if cfg.Service.SessionCookie == "" {
		logger.Error("Missing session cookie")
		ui.PrintError("Missing Sproutbook session cookie", "Run 'nestsync auth login' to store a session")
		os.Exit(exitConfig)
	}
	if cfg.Service.AccountID == "" {
		logger.Error("Missing account id")
		ui.PrintError("Missing Sproutbook account id", "Run 'nestsync auth login' to store a session")
		os.Exit(exitConfig)
	}

	client := sproutbook.NewClient(cfg.Service.BaseURL, time.Duration(cfg.Service.RequestTimeout), nil)
	client.SetMediaTimeout(time.Duration(cfg.Download.DownloadTimeout))
	client.SetSession(cfg.Service.SessionCookie, cfg.Service.AccountID, cfg.Service.UserAgent)

	// Stamping is best-effort: a missing exiftool downgrades the run to
	// plain downloads instead of failing it.
	var stamper downloader.Stamper
	if cfg.Stamping.Enabled && !dryRun {
		tagger, err := stamp.NewExifTagger(cfg.Stamping.ExiftoolBinary)
		if err != nil {
			logger.WithError(err).Warn("exiftool unavailable, delivering without embedded tags")
			ui.PrintWarning("exiftool not found, media will be saved without embedded capture dates")
		} else {
			defer tagger.Close()
			stamper = stamp.NewStamper(tagger, nil)
		}
	}

	s, err := syncer.New(cfg, client, stamper)
	if err != nil {
		ui.PrintError("Failed to initialize syncer", err.Error())
		os.Exit(exitSync)
	}
	s.SetDryRun(dryRun)
	s.SetFilter(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *syncer.Report
	if useTUI && !quiet {
		report, err = runWithDashboard(ctx, s, cfg)
	} else {
		if !quiet {
			s.SetProgress(ui.NewSyncDisplay(verbose))
		}
		if dryRun {
			ui.PrintHighlight("[DRY RUN - NOTHING WILL BE DOWNLOADED]")
		} else {
			ui.PrintHighlight("[SYNCING ENROLLMENTS]")
		}
		report, err = s.Run(ctx)
	}
	if err != nil {
		logger.WithError(err).Error("Sync run failed")
		ui.PrintError("SYNC FAILED", err.Error())
		if errs.IsType(err, errs.ErrorTypeConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitSync)
	}

	printSummary(report)

	if notifications && !dryRun {
		notifier := ui.NewNotifier()
		switch {
		case report.HasFailures():
			notifier.SendError("NestSync", fmt.Sprintf("Sync finished with failures (%d enrollments failed)", report.Failed))
		case report.TotalDownloaded() > 0:
			notifier.SendSuccess("NestSync", fmt.Sprintf("%d new assets archived", report.TotalDownloaded()))
		}
	}

	if report.HasFailures() {
		os.Exit(exitSync)
	}

	logger.Info("Sync completed successfully")
}

// runWithDashboard drives the run under the full-screen dashboard.
// Quitting the dashboard cancels the run at its next pagination
// checkpoint, the same way an interrupt does, and the partial report is
// still returned.
func runWithDashboard(ctx context.Context, s *syncer.Syncer, cfg *config.Config) (*syncer.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dash := tui.NewTUI(cfg.Download.ConcurrentDownloads)
	dash.SetDryRun(dryRun)
	s.SetProgress(dash)

	var report *syncer.Report
	syncDone := make(chan error, 1)
	go func() {
		var runErr error
		report, runErr = s.Run(ctx)
		syncDone <- runErr
	}()

	dashDone := make(chan error, 1)
	go func() {
		dashDone <- dash.Start()
	}()

	dash.LogInfo("Archiving into %s", cfg.Output.BaseDirectory)

	select {
	case err := <-syncDone:
		dash.Stop()
		<-dashDone
		return report, err
	case err := <-dashDone:
		// The user closed the dashboard; wind the run down and keep
		// whatever it finished.
		cancel()
		runErr := <-syncDone
		if err != nil {
			return report, err
		}
		return report, runErr
	}
}

// printSummary renders the per-enrollment outcome table after a run.
func printSummary(report *syncer.Report) {
	if quiet {
		return
	}

	fmt.Println()
	for i := range report.Enrollments {
		er := &report.Enrollments[i]
		switch {
		case er.Skipped:
			fmt.Printf("  %s %s: skipped (%s)\n", ui.Dim("•"), er.Name, er.SkipReason)
		case er.Err != nil:
			fmt.Printf("  %s %s: %v\n", ui.Red("✗"), er.Name, er.Err)
		case report.DryRun:
			fmt.Printf("  %s %s: %d notes, up to %d assets would be fetched\n",
				ui.Yellow("→"), er.Name, er.NotesSynced, er.AssetsSelected)
		default:
			line := fmt.Sprintf("  %s %s: %d new, %d already on disk",
				ui.Green("✓"), er.Name, er.Downloaded, er.SkippedAssets)
			if er.FailedAssets > 0 {
				line += ", " + ui.Red(fmt.Sprintf("%d failed", er.FailedAssets))
			}
			if er.Limited {
				line += " " + ui.Yellow(fmt.Sprintf("(capped at %d of %d assets)", er.AssetsSelected, er.AssetsTotal))
			}
			if er.Advanced {
				line += " " + ui.Dim("→ "+er.Watermark.Format("2006-01-02 15:04"))
			}
			fmt.Println(line)
		}
	}

	duration := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Printf("\n%d synced, %d skipped, %d failed in %s\n",
		report.Synced, report.Skipped, report.Failed, duration)
}
