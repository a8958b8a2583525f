// Package storage provides on-disk file management for synced media.
//
// The storage package handles:
//   - Creating and managing the output root and per-enrollment directories
//   - Saving assets with atomic write operations
//   - Detecting already-delivered assets across runs
//   - Thread-safe file operations
//
// The Manager type is the primary interface for storage operations. It
// maintains an in-memory index of delivered files for fast duplicate
// detection and provides atomic file writing to prevent corruption.
//
// Usage:
//
//	manager, err := storage.NewManager("output_directory")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Skip assets that already made it to disk
//	if !manager.Has("emma/2024-03-01_n81_01.jpg") {
//	    written, err := manager.Save(body, "emma/2024-03-01_n81_01.jpg")
//	    if err != nil {
//	        log.Printf("Failed to save asset: %v", err)
//	    }
//	    _ = written
//	}
package storage
