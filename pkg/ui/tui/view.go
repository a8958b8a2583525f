package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire dashboard.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string

	// Banner
	sections = append(sections, m.renderLogo())

	// Main content area with two columns
	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderRightColumn()

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ", // spacing
		rightColumn,
	)
	sections = append(sections, mainContent)

	// Help
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderLogo renders the banner
func (m *Model) renderLogo() string {
	logo := `
 ███╗   ██╗███████╗███████╗████████╗███████╗██╗   ██╗███╗   ██╗ ██████╗
 ████╗  ██║██╔════╝██╔════╝╚══██╔══╝██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
 ██╔██╗ ██║█████╗  ███████╗   ██║   ███████╗ ╚████╔╝ ██╔██╗ ██║██║
 ██║╚██╗██║██╔══╝  ╚════██║   ██║   ╚════██║  ╚██╔╝  ██║╚██╗██║██║
 ██║ ╚████║███████╗███████║   ██║   ███████║   ██║   ██║ ╚████║╚██████╗
 ╚═╝  ╚═══╝╚══════╝╚══════╝   ╚═╝   ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
                          LIVE SYNC DASHBOARD`

	return logoStyle.Width(m.width).Render(logo)
}

// renderLeftColumn renders the left side of the dashboard
func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	var sections []string

	// Run stats panel
	sections = append(sections, m.renderStatsPanel(width))

	// Current enrollment panel
	sections = append(sections, m.renderCurrentPanel(width))

	// Enrollments panel
	sections = append(sections, m.renderEnrollmentsPanel(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderRightColumn renders the right side of the dashboard
func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	var sections []string

	// Recent assets panel
	sections = append(sections, m.renderRecentPanel(width))

	// Activity log panel
	sections = append(sections, m.renderLogsPanel(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderStatsPanel renders the run totals
func (m *Model) renderStatsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" RUN STATS ")

	elapsed := time.Since(m.sessionStart)
	var avgRate float64
	if secs := elapsed.Seconds(); secs > 0 {
		avgRate = float64(m.totalBytes) / secs
	}

	finished := 0
	for _, item := range m.enrollments {
		if item.Phase == PhaseDone {
			finished++
		}
	}

	failures := statsValueStyle.Render("0")
	if m.totalFailed > 0 {
		failures = errorStyle.Render(fmt.Sprintf("%d", m.totalFailed))
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Enrollments:"), statsValueStyle.Render(fmt.Sprintf("%d of %d done", finished, len(m.enrollments)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("New Assets:"), statsValueStyle.Render(fmt.Sprintf("%d files", m.totalDownloaded))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Already On Disk:"), statsValueStyle.Render(fmt.Sprintf("%d", m.totalSkipped))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failures:"), failures),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Total Size:"), statsValueStyle.Render(FormatBytes(m.totalBytes))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Average Rate:"), rateStyle.Render(FormatRate(avgRate))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Workers:"), statsValueStyle.Render(fmt.Sprintf("%d", m.maxWorkers))),
	}

	if m.dryRun {
		stats = append(stats, warningStyle.Render("DRY RUN - nothing will be written"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, stats...)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderCurrentPanel renders the enrollment being synced right now
func (m *Model) renderCurrentPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" CURRENT ENROLLMENT ")

	item := m.enrollments[m.current]
	if item == nil {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting for the feed...")
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, content),
		)
	}

	header := fmt.Sprintf("%s %s", m.spinner.View(), itemActiveStyle.Render(item.Name))
	if item.Resumed {
		header += " " + warningStyle.Render("(resuming)")
	}

	lines := []string{header}
	switch item.Phase {
	case PhaseScanning:
		lines = append(lines, itemStyle.Render(fmt.Sprintf("scanning page %d • %d notes in window", item.Pages, item.Notes)))
	case PhaseDownloading:
		done := item.Downloaded + item.Skipped + item.Failed
		frac := 0.0
		if item.Queued > 0 {
			frac = float64(done) / float64(item.Queued)
		}
		if frac > 1.0 {
			frac = 1.0
		}

		bar := m.bar
		bar.Width = width - 12
		counter := GetProgressStyle(frac * 100).Render(fmt.Sprintf("%d/%d (%.0f%%)", done, item.Queued, frac*100))

		lines = append(lines,
			itemStyle.Render(fmt.Sprintf("%s • %s", counter, FormatBytes(item.Bytes))),
			itemStyle.Render(bar.ViewAs(frac)),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderEnrollmentsPanel lists every enrollment seen this run
func (m *Model) renderEnrollmentsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" ENROLLMENTS ")

	if len(m.order) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("None discovered yet")
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, content),
		)
	}

	var rows []string
	for _, name := range m.order {
		item := m.enrollments[name]
		if item == nil {
			continue
		}
		if item.Phase != PhaseDone {
			rows = append(rows, itemActiveStyle.Render("▸ "+item.Name))
			continue
		}

		row := fmt.Sprintf("✓ %s • %d new", item.Name, item.Downloaded)
		if item.Skipped > 0 {
			row += fmt.Sprintf(", %d on disk", item.Skipped)
		}
		if item.Failed > 0 {
			rows = append(rows, itemDoneStyle.Render(row)+" "+errorStyle.Render(fmt.Sprintf("%d failed", item.Failed)))
		} else {
			rows = append(rows, itemDoneStyle.Render(row))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderRecentPanel shows the newest settled deliveries
func (m *Model) renderRecentPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" RECENT ASSETS ")

	start := len(m.recent) - 8
	if start < 0 {
		start = 0
	}

	var rows []string
	for i := start; i < len(m.recent); i++ {
		a := m.recent[i]
		name := filepath.Base(a.Name)
		switch a.State {
		case AssetDelivered:
			rows = append(rows, itemStyle.Render(fmt.Sprintf("%s %s • %s", successStyle.Render("✓"), name, FormatBytes(a.Size))))
		case AssetOnDisk:
			rows = append(rows, itemDoneStyle.Render("• "+name+" already on disk"))
		case AssetError:
			rows = append(rows, itemStyle.Render(fmt.Sprintf("%s %s", errorStyle.Render("✗"), name)))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	if len(rows) == 0 {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("Nothing downloaded yet")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderLogsPanel renders the activity log
func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" ACTIVITY LOG ")

	// Get recent logs
	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for i := start; i < len(m.logMessages); i++ {
		log := m.logMessages[i]
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(log.Message)

		// Truncate message if too long
		maxMsgLen := width - 25
		if len(message) > maxMsgLen {
			message = message[:maxMsgLen-3] + "..."
		}

		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No activity yet...")
	}

	// Let the log panel fill the remaining height
	logsHeight := m.height - 35
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Navigation:
    q/Q      - Quit and stop the run
    ?        - Toggle this help
    ctrl+l   - Clear the activity log

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Delivered/Healthy
    ` + warningStyle.Render("Orange") + `   - Resumed/Preview
    ` + errorStyle.Render("Red") + `      - Failed

  Icons:
    ▸        - Enrollment in progress
    ✓        - Delivered asset
    ✗        - Failed delivery
`

	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
