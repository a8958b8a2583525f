package tui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the dashboard

// EnrollmentStartMsg is sent when an enrollment's sync begins.
type EnrollmentStartMsg struct {
	Name    string
	Resumed bool
}

// PageScannedMsg is sent for every fetched feed page.
type PageScannedMsg struct {
	Page  int
	Notes int
}

// DownloadsQueuedMsg is sent once the download queue is fixed.
type DownloadsQueuedMsg struct {
	Total int
}

// AssetCompletedMsg is sent when one asset lands on disk.
type AssetCompletedMsg struct {
	Name string
	Size int64
}

// AssetSkippedMsg is sent when an asset was already on disk.
type AssetSkippedMsg struct {
	Name string
}

// AssetFailedMsg is sent when a delivery fails.
type AssetFailedMsg struct {
	Name  string
	Error error
}

// EnrollmentDoneMsg is sent when an enrollment's sync settles.
type EnrollmentDoneMsg struct {
	Name       string
	Downloaded int
	Failed     int
}

// LogMsg adds an activity log entry.
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to refresh the view.
type TickMsg time.Time

// Update handles all messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		// Regular UI update tick
		return m, tea.Batch(
			tickCmd(),
			m.spinner.Tick,
		)

	case EnrollmentStartMsg:
		m.StartEnrollment(msg.Name, msg.Resumed)
		m.AddLogMessage("INFO", "Syncing "+msg.Name)
		return m, nil

	case PageScannedMsg:
		m.RecordPage(msg.Page, msg.Notes)
		return m, nil

	case DownloadsQueuedMsg:
		m.QueueDownloads(msg.Total)
		m.AddLogMessage("INFO", fmt.Sprintf("%d assets queued", msg.Total))
		return m, nil

	case AssetCompletedMsg:
		m.CompleteAsset(msg.Name, msg.Size)
		m.AddLogMessage("SUCCESS", "Archived "+filepath.Base(msg.Name))
		return m, nil

	case AssetSkippedMsg:
		m.SkipAsset(msg.Name)
		return m, nil

	case AssetFailedMsg:
		m.FailAsset(msg.Name, msg.Error)
		m.AddLogMessage("ERROR", "Failed: "+filepath.Base(msg.Name)+" - "+msg.Error.Error())
		return m, nil

	case EnrollmentDoneMsg:
		m.FinishEnrollment(msg.Name, msg.Downloaded, msg.Failed)
		if msg.Failed > 0 {
			m.AddLogMessage("WARN", fmt.Sprintf("%s: %d new assets, %d failed", msg.Name, msg.Downloaded, msg.Failed))
		} else {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("%s: %d new assets", msg.Name, msg.Downloaded))
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		// Clear the activity log
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// Commands

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Helper functions for external use

// SendEnrollmentStart creates a message for a starting enrollment
func SendEnrollmentStart(name string, resumed bool) tea.Msg {
	return EnrollmentStartMsg{Name: name, Resumed: resumed}
}

// SendPageScanned creates a message for one fetched feed page
func SendPageScanned(page, notes int) tea.Msg {
	return PageScannedMsg{Page: page, Notes: notes}
}

// SendDownloadsQueued creates a message fixing the download queue size
func SendDownloadsQueued(total int) tea.Msg {
	return DownloadsQueuedMsg{Total: total}
}

// SendAssetCompleted creates a message for one delivered asset
func SendAssetCompleted(name string, size int64) tea.Msg {
	return AssetCompletedMsg{Name: name, Size: size}
}

// SendAssetSkipped creates a message for an asset already on disk
func SendAssetSkipped(name string) tea.Msg {
	return AssetSkippedMsg{Name: name}
}

// SendAssetFailed creates a message for a failed delivery
func SendAssetFailed(name string, err error) tea.Msg {
	return AssetFailedMsg{Name: name, Error: err}
}

// SendEnrollmentDone creates a message for a settled enrollment
func SendEnrollmentDone(name string, downloaded, failed int) tea.Msg {
	return EnrollmentDoneMsg{Name: name, Downloaded: downloaded, Failed: failed}
}

// SendLog creates a log message
func SendLog(level, message string) tea.Msg {
	return LogMsg{Level: level, Message: message}
}
