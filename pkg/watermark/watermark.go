package watermark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"nestsync/pkg/logger"
)

// State is the persisted sync state: one entry per enrollment, stored in
// a single JSON file.
type State struct {
	Version     int                         `json:"version"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	Enrollments map[string]*EnrollmentState `json:"enrollments"`
}

// EnrollmentState records how far one enrollment's feed has been synced.
// Watermark is the instant of the newest note whose media is confirmed
// persisted; nothing at or before it needs to be fetched again.
type EnrollmentState struct {
	Name             string    `json:"name,omitempty"`
	Watermark        time.Time `json:"watermark"`
	LastSync         time.Time `json:"last_sync"`
	NotesSynced      int       `json:"notes_synced"`
	AssetsDownloaded int       `json:"assets_downloaded"`
}

func newState() *State {
	return &State{
		Version:     1,
		Enrollments: make(map[string]*EnrollmentState),
	}
}

// Enrollment returns the state entry for id, creating it when absent.
func (s *State) Enrollment(id string) *EnrollmentState {
	if s.Enrollments == nil {
		s.Enrollments = make(map[string]*EnrollmentState)
	}
	es, ok := s.Enrollments[id]
	if !ok {
		es = &EnrollmentState{}
		s.Enrollments[id] = es
	}
	return es
}

// Store handles sync state persistence
type Store struct {
	statePath string
	logger    logger.Logger
}

// NewStore creates a state store. An empty path selects the platform data
// directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		path = filepath.Join(dataDir, "state.json")
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	return &Store{
		statePath: path,
		logger:    logger.GetLogger(),
	}, nil
}

// Path returns the backing file location
func (s *Store) Path() string {
	return s.statePath
}

// Load reads the state file. A missing file yields a fresh empty state.
func (s *Store) Load() (*State, error) {
	file, err := os.Open(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return newState(), nil
		}
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	var state State
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	if state.Enrollments == nil {
		state.Enrollments = make(map[string]*EnrollmentState)
	}

	s.logger.InfoWithFields("sync state loaded", map[string]interface{}{
		"path":        s.statePath,
		"enrollments": len(state.Enrollments),
		"updated_at":  state.UpdatedAt,
	})

	return &state, nil
}

// Save writes the state to disk atomically
func (s *Store) Save(state *State) error {
	state.UpdatedAt = time.Now()

	// Create temporary file
	tempPath := s.statePath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	// Write state data
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	// Atomically replace the old state file
	if err := os.Rename(tempPath, s.statePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.logger.DebugWithFields("sync state saved", map[string]interface{}{
		"path":        s.statePath,
		"enrollments": len(state.Enrollments),
	})

	return nil
}

// Delete removes the state file
func (s *Store) Delete() error {
	if err := os.Remove(s.statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}

	s.logger.Info("sync state deleted")
	return nil
}

// Exists checks if a state file exists
func (s *Store) Exists() bool {
	_, err := os.Stat(s.statePath)
	return err == nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "nestsync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "nestsync")
		}
	case "darwin":
		// macOS: ~/Library/Application Support
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "nestsync")
	case "windows":
		// Windows: %APPDATA%
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "nestsync")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	// Create the data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
