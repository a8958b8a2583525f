package stamp

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Sidecar mirrors the tags a file could not reliably hold embedded. It is
// written as <asset path>.json next to the asset.
type Sidecar struct {
	CapturedAt string            `json:"captured_at"`
	Zone       string            `json:"zone"`
	Caption    string            `json:"caption,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	StampedAt  time.Time         `json:"stamped_at"`
}

// SidecarPath returns the sidecar location for an asset path.
func SidecarPath(assetPath string) string {
	return assetPath + ".json"
}

// Save writes the sidecar next to the asset.
func (s *Sidecar) Save(assetPath string) error {
	s.StampedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}
	if err := os.WriteFile(SidecarPath(assetPath), data, 0644); err != nil {
		return fmt.Errorf("failed to write sidecar file: %w", err)
	}
	return nil
}

// Load reads a previously written sidecar.
func Load(assetPath string) (*Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(assetPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar file: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar file: %w", err)
	}
	return &s, nil
}
