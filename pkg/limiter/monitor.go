package limiter

import "time"

// Monitor watches limiter recomputations across pages and decides when
// pagination may stop early: once the cap is saturated, pages older than
// the boundary cannot change which assets fall inside it.
//
// Page ordering from the vendor is not guaranteed strictly monotonic, so
// a boundary is only trusted after it survives a second recompute with
// one more page of data behind it. The cost is one extra page fetch per
// capped enrollment.
type Monitor struct {
	cap    int
	cutoff time.Time
	stable int
}

// NewMonitor creates a monitor for the given asset cap. cap <= 0 never
// signals saturation.
func NewMonitor(cap int) *Monitor {
	return &Monitor{cap: cap}
}

// Observe feeds one recomputed result and the just-fetched page's oldest
// resolved instant. It reports true when pagination may stop: the
// boundary has held for two consecutive pages and the newest page already
// lies entirely below it.
func (m *Monitor) Observe(res Result, pageOldest time.Time, pageOldestOK bool) bool {
	if m.cap <= 0 || !res.Limited {
		m.cutoff = time.Time{}
		m.stable = 0
		return false
	}

	if !m.cutoff.IsZero() && m.cutoff.Equal(res.Cutoff) {
		m.stable++
	} else {
		m.cutoff = res.Cutoff
		m.stable = 1
	}

	if m.stable < 2 {
		return false
	}
	return pageOldestOK && pageOldest.Before(m.cutoff)
}
