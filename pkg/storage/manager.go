package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager owns the on-disk media layout and duplicate detection. Assets
// are addressed by slash-separated paths relative to the output root,
// typically <enrollment>/<filename>.
type Manager struct {
	outputDir string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates the output root if needed and indexes the media
// files already present.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}
	if err := manager.scanExisting(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return manager, nil
}

// scanExisting walks the output root recording media files so a re-run
// never downloads what is already on disk. Sidecars and leftover temp
// files are not media.
func (m *Manager) scanExisting() error {
	return filepath.WalkDir(m.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".json") {
			return nil
		}
		rel, err := filepath.Rel(m.outputDir, path)
		if err != nil {
			return err
		}
		m.saved[filepath.ToSlash(rel)] = true
		return nil
	})
}

// Has reports whether the asset at relPath was already delivered. The
// in-memory index is checked first, then the filesystem, so files placed
// by a concurrent or earlier process are still detected.
func (m *Manager) Has(relPath string) bool {
	m.mu.RLock()
	found := m.saved[relPath]
	m.mu.RUnlock()
	if found {
		return true
	}

	if _, err := os.Stat(m.Path(relPath)); err == nil {
		m.mu.Lock()
		m.saved[relPath] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save streams r into relPath atomically: the bytes land in a temp file
// that is renamed into place only after a clean copy, so a failed
// download never leaves a partial asset behind.
func (m *Manager) Save(r io.Reader, relPath string) (int64, error) {
	filename := m.Path(relPath)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return 0, fmt.Errorf("failed to create asset directory: %w", err)
	}

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	written, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to save asset data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[relPath] = true
	m.mu.Unlock()

	return written, nil
}

// Path returns the absolute location of relPath under the output root.
func (m *Manager) Path(relPath string) string {
	return filepath.Join(m.outputDir, filepath.FromSlash(relPath))
}

// OutputDir returns the output root.
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// SavedCount returns the number of media files known to be on disk.
func (m *Manager) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
