// Package watermark provides incremental sync state: where each
// enrollment's feed was left off, and in-run deduplication.
//
// The watermark system lets repeated runs skip everything already
// persisted. It tracks:
//   - Per-enrollment watermark (newest instant confirmed on disk)
//   - Run statistics (notes synced, assets downloaded)
//   - A per-run dedup set for records re-served by overlapping pages
//
// State lives in a single JSON file in a platform-specific data
// directory:
//   - Linux: ~/.local/share/nestsync/
//   - macOS: ~/Library/Application Support/nestsync/
//   - Windows: %APPDATA%/nestsync/
//
// The file is rewritten atomically to prevent corruption and includes
// versioning for future compatibility.
package watermark
