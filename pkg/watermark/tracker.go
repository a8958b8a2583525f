package watermark

import (
	"time"

	"nestsync/pkg/timestamp"
)

// Tracker accumulates one run's dedup set and candidate watermark for a
// single enrollment. It is not safe for concurrent use; the syncer owns
// one per enrollment and feeds it from the page loop.
type Tracker struct {
	seen      map[string]struct{}
	baseline  time.Time
	watermark time.Time
}

// NewTracker starts a run against the enrollment's persisted watermark.
func NewTracker(baseline time.Time) *Tracker {
	return &Tracker{
		seen:      make(map[string]struct{}),
		baseline:  baseline,
		watermark: baseline,
	}
}

// Observe records a note sighting and reports whether it is the first one
// this run. Overlapping pages surface the same record more than once;
// only the first sighting gets processed.
func (t *Tracker) Observe(id string) bool {
	if _, dup := t.seen[id]; dup {
		return false
	}
	t.seen[id] = struct{}{}
	return true
}

// ObservedCount returns the number of distinct records seen this run.
func (t *Tracker) ObservedCount() int {
	return len(t.seen)
}

// Advance moves the candidate watermark forward to instant. Regressions
// are ignored, so persisting notes out of order can never move the
// watermark backwards.
func (t *Tracker) Advance(instant time.Time) {
	if instant.After(t.watermark) {
		t.watermark = instant
	}
}

// Watermark returns the candidate watermark and whether it moved past the
// baseline this run.
func (t *Tracker) Watermark() (time.Time, bool) {
	return t.watermark, t.watermark.After(t.baseline)
}

// ResumeAfter returns the inclusive lower bound for the next run: one
// quantum past the persisted watermark, so the watermarked note itself is
// excluded but nothing after it is. ok is false when no watermark has
// been recorded yet and the full history is in scope.
func ResumeAfter(es *EnrollmentState) (time.Time, bool) {
	if es == nil || es.Watermark.IsZero() {
		return time.Time{}, false
	}
	return es.Watermark.Add(timestamp.Quantum), true
}
