package limiter

import (
	"testing"
	"time"

	"nestsync/pkg/sproutbook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUnlimited(t *testing.T) {
	notes := []sproutbook.Note{
		{ID: "a", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/a1.jpg"}}},
		{ID: "b", EventTime: "2025-09-17T11:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/b1.jpg"}}},
	}

	t.Run("cap disabled", func(t *testing.T) {
		res := Apply(notes, 0, time.UTC)
		assert.False(t, res.Limited)
		assert.Equal(t, 2, res.TotalAssets)
		assert.Equal(t, 2, res.SelectedAssets)
		assert.Len(t, res.Notes, 2)
		assert.True(t, res.Cutoff.IsZero())
	})

	t.Run("cap at least total", func(t *testing.T) {
		res := Apply(notes, 2, time.UTC)
		assert.False(t, res.Limited)
		assert.Equal(t, 2, res.SelectedAssets)
		assert.Len(t, res.Notes, 2)
	})
}

func TestApplyCapSelectsOldestFirst(t *testing.T) {
	notes := []sproutbook.Note{
		{ID: "a", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/a1.jpg"}}},
		{ID: "b", EventTime: "2025-09-17T10:05:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/b1.jpg"}}},
		{ID: "c", EventTime: "2025-09-17T10:10:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/c1.jpg"}}},
	}

	res := Apply(notes, 2, time.UTC)

	assert.True(t, res.Limited)
	assert.Equal(t, 3, res.TotalAssets)
	assert.Equal(t, 2, res.SelectedAssets)

	require.Len(t, res.Notes, 2)
	assert.Equal(t, "a", res.Notes[0].Identity())
	assert.Equal(t, "b", res.Notes[1].Identity())

	wantCutoff := time.Date(2025, 9, 17, 10, 5, 0, 0, time.UTC)
	assert.True(t, res.Cutoff.Equal(wantCutoff))
	assert.True(t, res.LatestRetained.Equal(wantCutoff))
}

func TestApplyBoundaryTies(t *testing.T) {
	t.Run("tie group in one note is never split", func(t *testing.T) {
		notes := []sproutbook.Note{
			{ID: "a", EventTime: "2025-09-17 10:00:00.000", Media: []sproutbook.Asset{
				{URL: "https://cdn/a1.jpg"},
				{URL: "https://cdn/a2.jpg"},
			}},
		}

		res := Apply(notes, 1, time.UTC)

		// Both assets share the boundary instant, so both are selected and
		// nothing was actually cut
		assert.False(t, res.Limited)
		assert.Equal(t, 2, res.TotalAssets)
		assert.Equal(t, 2, res.SelectedAssets)
		require.Len(t, res.Notes, 1)
		assert.Len(t, res.Notes[0].Media, 2)
	})

	t.Run("tie group across notes", func(t *testing.T) {
		notes := []sproutbook.Note{
			{ID: "a", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/a1.jpg"}}},
			{ID: "b", EventTime: "2025-09-17T10:05:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/b1.jpg"}}},
			{ID: "c", EventTime: "2025-09-17T10:05:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/c1.jpg"}}},
			{ID: "d", EventTime: "2025-09-17T10:10:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/d1.jpg"}}},
		}

		res := Apply(notes, 2, time.UTC)

		assert.True(t, res.Limited)
		assert.Equal(t, 4, res.TotalAssets)
		assert.Equal(t, 3, res.SelectedAssets)
		require.Len(t, res.Notes, 3)
		assert.Equal(t, "a", res.Notes[0].Identity())
		assert.Equal(t, "b", res.Notes[1].Identity())
		assert.Equal(t, "c", res.Notes[2].Identity())
		assert.True(t, res.Cutoff.Equal(time.Date(2025, 9, 17, 10, 5, 0, 0, time.UTC)))
	})
}

func TestApplyUnresolvableTail(t *testing.T) {
	notes := []sproutbook.Note{
		{ID: "dated", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/a1.jpg"}}},
		{ID: "undated", Media: []sproutbook.Asset{
			{URL: "https://cdn/u1.jpg"},
			{URL: "https://cdn/u2.jpg"},
		}},
	}

	// The cap lands inside the unresolvable group; the whole group ties
	// together and everything is selected
	res := Apply(notes, 2, time.UTC)

	assert.False(t, res.Limited)
	assert.Equal(t, 3, res.TotalAssets)
	assert.Equal(t, 3, res.SelectedAssets)
	assert.Len(t, res.Notes, 2)
}

func TestApplyParentTimeFallback(t *testing.T) {
	notes := []sproutbook.Note{
		{ID: "a", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{
			{URL: "https://cdn/a1.jpg", CaptureTime: "not-a-date"},
		}},
		{ID: "b", EventTime: "2025-09-17T10:30:00Z", Media: []sproutbook.Asset{
			{URL: "https://cdn/b1.jpg", CaptureTime: "2025-09-17T10:30:00Z"},
		}},
	}

	res := Apply(notes, 1, time.UTC)

	// The malformed capture time falls back to the parent note's instant,
	// which makes it the oldest asset
	assert.True(t, res.Limited)
	require.Len(t, res.Notes, 1)
	assert.Equal(t, "a", res.Notes[0].Identity())
	assert.True(t, res.Cutoff.Equal(time.Date(2025, 9, 17, 10, 0, 0, 0, time.UTC)))
}

func TestApplyTextNotesSurvive(t *testing.T) {
	notes := []sproutbook.Note{
		{ID: "text", EventTime: "2025-09-17T09:00:00Z", Comment: "First day of spring unit"},
		{ID: "a", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/a1.jpg"}}},
		{ID: "b", EventTime: "2025-09-17T11:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/b1.jpg"}}},
	}

	res := Apply(notes, 1, time.UTC)

	assert.True(t, res.Limited)
	require.Len(t, res.Notes, 2)
	assert.Equal(t, "text", res.Notes[0].Identity())
	assert.Equal(t, "a", res.Notes[1].Identity())
}

func TestApplyNeverMutatesInput(t *testing.T) {
	notes := []sproutbook.Note{
		{ID: "a", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/a1.jpg"}}},
		{ID: "b", EventTime: "2025-09-17T11:00:00Z", Media: []sproutbook.Asset{
			{URL: "https://cdn/b1.jpg"},
			{URL: "https://cdn/b2.jpg"},
		}},
	}

	res := Apply(notes, 1, time.UTC)
	require.True(t, res.Limited)

	// Input untouched
	assert.Len(t, notes[0].Media, 1)
	assert.Len(t, notes[1].Media, 2)

	// Output media is a fresh slice, not a view over the input
	require.Len(t, res.Notes, 1)
	res.Notes[0].Media[0].URL = "changed"
	assert.Equal(t, "https://cdn/a1.jpg", notes[0].Media[0].URL)
}

func TestApplyDeterministic(t *testing.T) {
	notes := []sproutbook.Note{
		{ID: "a", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{
			{URL: "https://cdn/a1.jpg"},
			{URL: "https://cdn/a2.jpg"},
		}},
		{ID: "b", EventTime: "2025-09-17T10:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/b1.jpg"}}},
		{ID: "c", EventTime: "2025-09-17T11:00:00Z", Media: []sproutbook.Asset{{URL: "https://cdn/c1.jpg"}}},
	}

	first := Apply(notes, 2, time.UTC)
	second := Apply(notes, 2, time.UTC)

	assert.Equal(t, first, second)
}

func TestMonitor(t *testing.T) {
	cutoff := time.Date(2025, 9, 17, 10, 5, 0, 0, time.UTC)
	limited := Result{Limited: true, Cutoff: cutoff}
	olderPage := cutoff.Add(-time.Hour)
	newerPage := cutoff.Add(time.Hour)

	t.Run("disabled cap never saturates", func(t *testing.T) {
		m := NewMonitor(0)
		assert.False(t, m.Observe(limited, olderPage, true))
		assert.False(t, m.Observe(limited, olderPage, true))
	})

	t.Run("requires the boundary to survive a second page", func(t *testing.T) {
		m := NewMonitor(10)
		assert.False(t, m.Observe(limited, olderPage, true), "first sighting must fetch one more page")
		assert.True(t, m.Observe(limited, olderPage, true), "stable boundary with older page saturates")
	})

	t.Run("page not yet past the boundary", func(t *testing.T) {
		m := NewMonitor(10)
		assert.False(t, m.Observe(limited, newerPage, true))
		assert.False(t, m.Observe(limited, newerPage, true))
		assert.False(t, m.Observe(limited, cutoff, true), "page at the boundary may still add ties")
		assert.True(t, m.Observe(limited, olderPage, true))
	})

	t.Run("drifting boundary resets stability", func(t *testing.T) {
		m := NewMonitor(10)
		drifted := Result{Limited: true, Cutoff: cutoff.Add(-time.Minute)}

		assert.False(t, m.Observe(limited, olderPage, true))
		assert.False(t, m.Observe(drifted, olderPage, true), "changed boundary starts over")
		assert.True(t, m.Observe(drifted, drifted.Cutoff.Add(-time.Hour), true))
	})

	t.Run("unlimited result resets", func(t *testing.T) {
		m := NewMonitor(10)
		assert.False(t, m.Observe(limited, olderPage, true))
		assert.False(t, m.Observe(Result{}, olderPage, true))
		assert.False(t, m.Observe(limited, olderPage, true), "stability starts over after reset")
		assert.True(t, m.Observe(limited, olderPage, true))
	})

	t.Run("unresolvable page floor never saturates", func(t *testing.T) {
		m := NewMonitor(10)
		assert.False(t, m.Observe(limited, time.Time{}, false))
		assert.False(t, m.Observe(limited, time.Time{}, false))
	})
}
