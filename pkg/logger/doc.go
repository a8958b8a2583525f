// Package logger provides structured logging for NestSync.
//
// It wraps the zerolog library behind a small Logger interface so the
// rest of the codebase never imports zerolog directly. Features:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output alongside the console
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "nestsync/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File:  "nestsync.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Sync starting")
//	logger.WithField("enrollment", "Emma R.").Info("Enrollment selected")
//	logger.WithError(err).Error("Failed to download asset")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "downloader").
//	    WithField("enrollment", enrollmentID)
//
//	// Use structured logging
//	log.InfoWithFields("Asset stored", map[string]interface{}{
//	    "file": "2024-03-01_100000_48213_01.jpg",
//	    "size": 1024000,
//	})
//
// Configuration options:
// - Level: log level (debug, info, warn, error)
// - File: path to a log file; empty logs to the console only
package logger
