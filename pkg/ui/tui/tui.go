package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI is the full-screen dashboard for a sync run. Its event methods
// mirror the syncer's progress callbacks, so a *TUI attaches anywhere
// the plain line display does.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard sized to the download worker count.
func NewTUI(maxWorkers int) *TUI {
	model := NewModel(maxWorkers)
	program := tea.NewProgram(model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   model,
	}
}

// SetDryRun marks the run as a preview. Call before Start.
func (t *TUI) SetDryRun(dryRun bool) {
	t.model.SetDryRun(dryRun)
}

// Start runs the dashboard until Stop is called or the user quits.
func (t *TUI) Start() error {
	go func() {
		// Send initial tick to start the spinner
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the dashboard gracefully.
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the dashboard.
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// EnrollmentStarted notes that an enrollment's sync began.
func (t *TUI) EnrollmentStarted(name string, resumed bool) {
	t.Send(SendEnrollmentStart(name, resumed))
}

// PageScanned notes one fetched feed page.
func (t *TUI) PageScanned(page, notes int) {
	t.Send(SendPageScanned(page, notes))
}

// DownloadsQueued notes the fixed download queue size.
func (t *TUI) DownloadsQueued(total int) {
	t.Send(SendDownloadsQueued(total))
}

// AssetCompleted notes one delivered asset.
func (t *TUI) AssetCompleted(name string, size int64) {
	t.Send(SendAssetCompleted(name, size))
}

// AssetSkipped notes one asset already on disk.
func (t *TUI) AssetSkipped(name string) {
	t.Send(SendAssetSkipped(name))
}

// AssetFailed notes one failed delivery.
func (t *TUI) AssetFailed(name string, err error) {
	t.Send(SendAssetFailed(name, err))
}

// EnrollmentFinished notes that an enrollment's sync settled.
func (t *TUI) EnrollmentFinished(name string, downloaded, failed int) {
	t.Send(SendEnrollmentDone(name, downloaded, failed))
}

// Log sends a formatted entry to the activity log.
func (t *TUI) Log(level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	t.Send(SendLog(level, message))
}

// LogInfo logs an info message.
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}
