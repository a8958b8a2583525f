package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// EnrollmentPhase is where an enrollment stands in the run.
type EnrollmentPhase int

const (
	PhaseScanning EnrollmentPhase = iota
	PhaseDownloading
	PhaseDone
)

// EnrollmentItem holds one enrollment's live counters.
type EnrollmentItem struct {
	Name       string
	Resumed    bool
	Phase      EnrollmentPhase
	Pages      int
	Notes      int
	Queued     int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// AssetState is the terminal outcome of one asset delivery.
type AssetState int

const (
	AssetDelivered AssetState = iota
	AssetOnDisk
	AssetError
)

// AssetItem is one settled delivery shown in the recent panel.
type AssetItem struct {
	Name  string
	Size  int64
	State AssetState
	Error error
}

// LogMessage is one entry in the activity log.
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. Events arrive as messages on the
// bubbletea loop; the mutators also lock so they stay safe if driven
// directly.
type Model struct {
	// UI components
	spinner spinner.Model
	bar     progress.Model

	// Run state
	enrollments map[string]*EnrollmentItem
	order       []string
	current     string
	maxWorkers  int
	dryRun      bool

	// Run totals
	totalDownloaded int
	totalSkipped    int
	totalFailed     int
	totalBytes      int64
	sessionStart    time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	recent         []AssetItem
	maxRecent      int
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// NewModel creates the dashboard model.
func NewModel(maxWorkers int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return &Model{
		spinner:        s,
		bar:            bar,
		enrollments:    make(map[string]*EnrollmentItem),
		maxWorkers:     maxWorkers,
		sessionStart:   time.Now(),
		maxRecent:      50,
		maxLogMessages: 50,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetDryRun marks the run as a preview.
func (m *Model) SetDryRun(dryRun bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dryRun = dryRun
}

// StartEnrollment begins tracking an enrollment.
func (m *Model) StartEnrollment(name string, resumed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.enrollments[name]; !ok {
		m.order = append(m.order, name)
	}
	m.enrollments[name] = &EnrollmentItem{
		Name:    name,
		Resumed: resumed,
		Phase:   PhaseScanning,
	}
	m.current = name
}

// RecordPage folds one scanned feed page into the current enrollment.
func (m *Model) RecordPage(page, notes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.enrollments[m.current]; item != nil {
		item.Pages = page
		item.Notes += notes
	}
}

// QueueDownloads fixes the download denominator for the current
// enrollment and moves it into the download phase.
func (m *Model) QueueDownloads(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.enrollments[m.current]; item != nil {
		item.Queued = total
		item.Phase = PhaseDownloading
	}
}

// CompleteAsset records one delivered asset.
func (m *Model) CompleteAsset(name string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.enrollments[m.current]; item != nil {
		item.Downloaded++
		item.Bytes += size
	}
	m.totalDownloaded++
	m.totalBytes += size
	m.pushRecent(AssetItem{Name: name, Size: size, State: AssetDelivered})
}

// SkipAsset records one asset that was already on disk.
func (m *Model) SkipAsset(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.enrollments[m.current]; item != nil {
		item.Skipped++
	}
	m.totalSkipped++
	m.pushRecent(AssetItem{Name: name, State: AssetOnDisk})
}

// FailAsset records one failed delivery.
func (m *Model) FailAsset(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.enrollments[m.current]; item != nil {
		item.Failed++
	}
	m.totalFailed++
	m.pushRecent(AssetItem{Name: name, State: AssetError, Error: err})
}

// FinishEnrollment settles an enrollment. The counts from the syncer
// are authoritative.
func (m *Model) FinishEnrollment(name string, downloaded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item := m.enrollments[name]; item != nil {
		item.Phase = PhaseDone
		item.Downloaded = downloaded
		item.Failed = failed
	}
	if m.current == name {
		m.current = ""
	}
}

// pushRecent appends to the recent ring. Callers hold the lock.
func (m *Model) pushRecent(item AssetItem) {
	m.recent = append(m.recent, item)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

// AddLogMessage adds an activity log entry.
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatRate formats an archive rate in bytes per second.
func FormatRate(bytesPerSecond float64) string {
	return fmt.Sprintf("%s/s", FormatBytes(int64(bytesPerSecond)))
}
