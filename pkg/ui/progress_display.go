package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SyncDisplay renders a single-line live progress view for a sync run.
// One display serves the whole run; counters reset when a new enrollment
// starts. Download events arrive concurrently from pool workers, so every
// method locks.
type SyncDisplay struct {
	mu           sync.Mutex
	enrollment   string
	totalAssets  int
	downloaded   int
	skipped      int
	failed       int
	currentAsset string
	startTime    time.Time
	bytesWritten int64
	verbose      bool
}

// NewSyncDisplay creates a display. Verbose mode prints one line per
// event instead of redrawing a progress line.
func NewSyncDisplay(verbose bool) *SyncDisplay {
	return &SyncDisplay{
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// EnrollmentStarted resets the counters for the next enrollment.
func (p *SyncDisplay) EnrollmentStarted(name string, resumed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.enrollment = name
	p.totalAssets = 0
	p.downloaded = 0
	p.skipped = 0
	p.failed = 0
	p.currentAsset = ""
	p.startTime = time.Now()
	p.bytesWritten = 0

	if quiet {
		return
	}
	label := name
	if resumed {
		label += " (resuming)"
	}
	fmt.Printf("\n%s %s\n", Magenta("▸"), Cyan(label))
}

// PageScanned reports one fetched feed page.
func (p *SyncDisplay) PageScanned(page, notes int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quiet {
		return
	}
	if p.verbose {
		fmt.Printf("%s Scanned page %d (%d notes)\n", Magenta("→"), page, notes)
	} else {
		fmt.Printf("\r%s scanning page %d...", Dim(p.enrollment), page)
	}
}

// DownloadsQueued fixes the denominator for the progress bar.
func (p *SyncDisplay) DownloadsQueued(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalAssets = total
	if !quiet && !p.verbose {
		p.printProgress()
	}
}

// AssetCompleted marks one asset as delivered.
func (p *SyncDisplay) AssetCompleted(name string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloaded++
	p.bytesWritten += size
	p.currentAsset = filepath.Base(name)

	if quiet {
		return
	}
	if p.verbose {
		fmt.Printf("%s %s • %s\n", Green("✓"), filepath.Base(name), formatBytes(size))
	} else {
		p.printProgress()
	}
}

// AssetSkipped marks one asset as already on disk.
func (p *SyncDisplay) AssetSkipped(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
	if quiet {
		return
	}
	if p.verbose {
		fmt.Printf("%s %s %s\n", Dim("•"), filepath.Base(name), Dim("already on disk"))
	} else {
		p.printProgress()
	}
}

// AssetFailed marks one asset as failed.
func (p *SyncDisplay) AssetFailed(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	if quiet {
		return
	}
	if p.verbose {
		fmt.Printf("%s %s - %v\n", Red("✗"), filepath.Base(name), err)
	} else {
		p.printProgress()
	}
}

// EnrollmentFinished prints the per-enrollment summary line.
func (p *SyncDisplay) EnrollmentFinished(name string, downloaded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quiet {
		return
	}

	elapsed := time.Since(p.startTime)
	if !p.verbose {
		// Clear the redraw line before the summary
		fmt.Printf("\r%s\r", strings.Repeat(" ", 120))
	}

	fmt.Printf("%s %d new assets for %s", Green("✓"), downloaded, name)
	if p.skipped > 0 {
		fmt.Printf(" %s", Dim(fmt.Sprintf("(%d already on disk)", p.skipped)))
	}
	fmt.Println()
	if downloaded > 0 {
		fmt.Printf("  %s %s in %s\n", Dim("•"), formatBytes(p.bytesWritten), formatDuration(elapsed))
	}
	if failed > 0 {
		fmt.Printf("  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d downloads failed", failed)))
	}
}

// printProgress redraws the single progress line. Callers hold the lock.
func (p *SyncDisplay) printProgress() {
	done := p.downloaded + p.skipped + p.failed

	barWidth := 20
	var filled int
	if p.totalAssets > 0 {
		filled = done * barWidth / p.totalAssets
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("\r%s [%s] %d/%d • %s • %s",
		Cyan(p.enrollment),
		bar,
		done,
		p.totalAssets,
		formatBytes(p.bytesWritten),
		p.calculateETA(done),
	)

	if p.currentAsset != "" {
		line += fmt.Sprintf(" • %s", p.currentAsset)
	}
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.failed)))
	}

	fmt.Printf("\r%s\r%s", strings.Repeat(" ", 120), line)
}

// calculateETA estimates time remaining from the observed rate.
func (p *SyncDisplay) calculateETA(done int) string {
	if done == 0 || p.totalAssets == 0 {
		return "calculating..."
	}

	remaining := p.totalAssets - done
	elapsed := time.Since(p.startTime)
	rate := float64(done) / elapsed.Seconds()
	if rate == 0 {
		return "calculating..."
	}

	eta := time.Duration(float64(remaining)/rate) * time.Second
	return formatDuration(eta)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
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
