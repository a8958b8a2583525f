package syncer

import (
	"time"

	"nestsync/pkg/feed"
)

// EnrollmentReport summarizes one enrollment's sync.
type EnrollmentReport struct {
	EnrollmentID string
	Name         string

	// Skipped is set when the enrollment was never synced (no identity).
	Skipped    bool
	SkipReason string

	// StopReason explains how pagination ended.
	StopReason feed.StopReason
	Pages      int

	// NotesSeen counts in-window notes as served, including duplicates
	// from overlapping pages; NotesNew counts distinct notes accumulated;
	// NotesSynced counts notes in the final selection.
	NotesSeen   int
	NotesNew    int
	NotesSynced int

	// Asset selection.
	AssetsTotal    int
	AssetsSelected int
	Limited        bool

	// Delivery.
	Downloaded    int
	SkippedAssets int
	FailedAssets  int
	Stamped       int

	// Watermark state after the run.
	Watermark time.Time
	Advanced  bool

	// Err is the fatal error that aborted this enrollment, if any.
	Err error
}

// Report summarizes a whole run across enrollments.
type Report struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	DryRun      bool
	Enrollments []EnrollmentReport

	Synced  int
	Skipped int
	Failed  int
}

// HasFailures reports whether any enrollment aborted on a fatal error.
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

// TotalDownloaded sums delivered assets across enrollments.
func (r *Report) TotalDownloaded() int {
	total := 0
	for i := range r.Enrollments {
		total += r.Enrollments[i].Downloaded
	}
	return total
}
