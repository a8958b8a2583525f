package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.SavedCount() != 0 {
		t.Error("Expected initial saved count to be 0")
	}
	if manager.Has("emma/2024-03-01_n81_01.jpg") {
		t.Error("Expected Has to return false for a fresh directory")
	}

	testData := []byte("jpeg bytes")
	written, err := manager.Save(bytes.NewReader(testData), "emma/2024-03-01_n81_01.jpg")
	if err != nil {
		t.Fatalf("Failed to save asset: %v", err)
	}
	if written != int64(len(testData)) {
		t.Errorf("Expected %d bytes written, got %d", len(testData), written)
	}

	expectedPath := filepath.Join(tempDir, "emma", "2024-03-01_n81_01.jpg")
	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match saved data")
	}

	if !manager.Has("emma/2024-03-01_n81_01.jpg") {
		t.Error("Expected Has to return true after save")
	}
	if manager.SavedCount() != 1 {
		t.Errorf("Expected saved count 1, got %d", manager.SavedCount())
	}

	if manager.Path("emma/x.png") != filepath.Join(tempDir, "emma", "x.png") {
		t.Errorf("Unexpected path mapping: %s", manager.Path("emma/x.png"))
	}
	if manager.OutputDir() != tempDir {
		t.Errorf("Unexpected output dir: %s", manager.OutputDir())
	}
}

func TestManagerScansExisting(t *testing.T) {
	tempDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tempDir, "liam"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"liam/2024-02-10_n42_01.png":      "png",
		"liam/2024-02-10_n42_01.png.json": "sidecar",
		"liam/2024-02-11_n43_01.mp4.tmp":  "partial",
		"rootlevel.jpg":                   "jpg",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(tempDir, filepath.FromSlash(name)), []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	// Sidecars and temp leftovers are not media.
	if manager.SavedCount() != 2 {
		t.Errorf("Expected saved count 2 after scan, got %d", manager.SavedCount())
	}
	if !manager.Has("liam/2024-02-10_n42_01.png") {
		t.Error("Expected scanned media file to be detected")
	}
	if !manager.Has("rootlevel.jpg") {
		t.Error("Expected root-level media file to be detected")
	}
	if manager.Has("liam/2024-02-11_n43_01.mp4") {
		t.Error("Expected temp leftover to be ignored")
	}
}

func TestManagerHasStatFallback(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	// File placed after the scan is still found and cached.
	if err := os.WriteFile(filepath.Join(tempDir, "late.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !manager.Has("late.jpg") {
		t.Error("Expected stat fallback to detect the file")
	}
	if manager.SavedCount() != 1 {
		t.Errorf("Expected the stat hit to be cached, count %d", manager.SavedCount())
	}
}

func TestManagerSaveFailureLeavesNoPartial(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	r := &failingReader{data: strings.NewReader("partial body")}
	if _, err := manager.Save(r, "emma/broken.jpg"); err == nil {
		t.Fatal("Expected save to fail")
	}

	entries, err := os.ReadDir(filepath.Join(tempDir, "emma"))
	if err != nil {
		t.Fatalf("Failed to read enrollment dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no files after failed save, found %d", len(entries))
	}
	if manager.Has("emma/broken.jpg") {
		t.Error("Expected failed save not to be recorded")
	}
}

// failingReader yields some bytes then errors, simulating a dropped
// connection mid-download.
type failingReader struct {
	data *strings.Reader
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.data.Len() > 0 {
		return f.data.Read(p)
	}
	return 0, os.ErrDeadlineExceeded
}
