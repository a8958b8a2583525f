package logger

// This file shows how to integrate the logger into the main application

/*
Example integration in the sync command:

package main

import (
	"os"

	"nestsync/pkg/config"
	"nestsync/pkg/logger"
	"nestsync/pkg/syncer"
	"nestsync/pkg/ui"
)

func runSync(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration: %v", err)
		os.Exit(2)
	}

	// Initialize the logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger: %v", err)
		os.Exit(2)
	}

	// Now you can use the logger throughout the application
	logger.Info("NestSync starting")

	// Log configuration (be careful not to log the session cookie)
	logger.WithFields(map[string]interface{}{
		"output_dir": cfg.Output.BaseDirectory,
		"concurrent": cfg.Download.ConcurrentDownloads,
		"rate_limit": cfg.RateLimit.RequestsPerMinute,
		"log_level":  cfg.Logging.Level,
	}).Debug("Configuration loaded")

	s, err := syncer.New(cfg, client, stamper)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize syncer")
	}

	report, err := s.Run(ctx)
	if err != nil {
		logger.WithError(err).Error("Sync failed")
		os.Exit(1)
	}

	logger.WithField("downloaded", report.TotalDownloaded()).Info("Sync completed")
}
*/

// Example integration in the syncer package:
/*
func (s *Syncer) syncEnrollment(ctx context.Context, e *sproutbook.Enrollment) error {
	log := s.logger.
		WithField("component", "syncer").
		WithField("enrollment", e.Name())

	log.Info("Starting enrollment sync")

	// Resolve the watermark
	log.Debug("Loading sync state")
	state, err := s.watermarks.Load()
	if err != nil {
		log.WithError(err).Error("Failed to load sync state")
		return err
	}

	log.WithFields(map[string]interface{}{
		"enrollment_id": e.Identity(),
		"watermark":     state.Enrollment(e.Identity()).LastSyncedNoteTime,
	}).Info("Resuming after watermark")

	// ... rest of the implementation ...
}
*/

// Example integration in the download pool:
/*
func (wp *WorkerPool) process(job Job) Result {
	start := time.Now()
	log := wp.logger.
		WithField("component", "downloader").
		WithField("asset", job.RelPath)

	log.Debug("Starting download")

	// ... download and stamp ...

	log.WithField("duration", time.Since(start)).Info("Asset stored")
	return result
}
*/
