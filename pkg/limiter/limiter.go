// Package limiter bounds how many individual media assets one run will
// download, selecting oldest-first so a backlog drains chronologically
// and the watermark can advance steadily between capped runs.
package limiter

import (
	"sort"
	"time"

	"nestsync/pkg/sproutbook"
)

// assetRecord is one (note, media) pair flattened for selection.
type assetRecord struct {
	noteIdx  int
	assetIdx int
	instant  time.Time
	resolved bool
}

// Result reports one limiter pass over the accumulated note set.
type Result struct {
	// Notes is the filtered list: original order, media arrays trimmed,
	// media-bearing notes dropped once all their assets fall past the cap.
	// Notes without media always survive.
	Notes []sproutbook.Note

	TotalAssets    int
	SelectedAssets int

	// Limited reports whether any asset was actually cut. Boundary ties
	// can push SelectedAssets past the cap; when that absorbs the whole
	// tail nothing was cut and Limited stays false.
	Limited bool

	// Cutoff is the boundary instant: every selected asset resolves at or
	// before it, every dropped asset at or after it. Zero unless Limited.
	Cutoff time.Time

	// LatestRetained is the newest resolved instant among selected
	// assets, the resume point for a truncated run. Equals Cutoff while
	// Limited; zero otherwise.
	LatestRetained time.Time
}

// Apply selects at most cap assets from notes, oldest first, extending
// past the cap only to keep a group of identical instants whole. The
// originals are never modified; filtered notes are fresh copies with
// fresh media slices. cap <= 0 disables limiting.
func Apply(notes []sproutbook.Note, cap int, loc *time.Location) Result {
	total := 0
	for i := range notes {
		total += len(notes[i].Media)
	}

	if cap <= 0 || total <= cap {
		return Result{Notes: notes, TotalAssets: total, SelectedAssets: total}
	}

	records := flatten(notes, loc)

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		// Unresolvable instants order after every resolved one
		if a.resolved != b.resolved {
			return a.resolved
		}
		if a.resolved && !a.instant.Equal(b.instant) {
			return a.instant.Before(b.instant)
		}
		if a.noteIdx != b.noteIdx {
			return a.noteIdx < b.noteIdx
		}
		return a.assetIdx < b.assetIdx
	})

	// Take the cap, then the rest of the boundary group: assets sharing
	// the boundary instant are never split across runs.
	boundary := records[cap-1]
	end := cap
	for end < len(records) && sameInstant(records[end], boundary) {
		end++
	}
	if end == total {
		// The tie group reached the end of the backlog; nothing was cut
		return Result{Notes: notes, TotalAssets: total, SelectedAssets: total}
	}
	selected := records[:end]

	// The boundary is always resolved here: an unresolved boundary means
	// the cap landed in the unresolvable tail, and the tie extension
	// above would have absorbed it entirely.
	return Result{
		Notes:          rebuild(notes, selected),
		TotalAssets:    total,
		SelectedAssets: len(selected),
		Limited:        true,
		Cutoff:         boundary.instant,
		LatestRetained: boundary.instant,
	}
}

// flatten resolves every (note, media) pair's instant: the asset's own
// fields first, then the parent note.
func flatten(notes []sproutbook.Note, loc *time.Location) []assetRecord {
	var records []assetRecord
	for ni := range notes {
		note := &notes[ni]
		for ai := range note.Media {
			rec := assetRecord{noteIdx: ni, assetIdx: ai}
			if r, ok := sproutbook.ResolveAssetTime(&note.Media[ai], note, loc); ok {
				rec.instant = r.Time
				rec.resolved = true
			}
			records = append(records, rec)
		}
	}
	return records
}

func sameInstant(a, b assetRecord) bool {
	if a.resolved != b.resolved {
		return false
	}
	if !a.resolved {
		return true
	}
	return a.instant.Equal(b.instant)
}

// rebuild assembles the filtered note list from the selected index pairs,
// copying notes so callers' inputs stay untouched.
func rebuild(notes []sproutbook.Note, selected []assetRecord) []sproutbook.Note {
	keep := make(map[int]map[int]bool, len(selected))
	for _, rec := range selected {
		if keep[rec.noteIdx] == nil {
			keep[rec.noteIdx] = make(map[int]bool)
		}
		keep[rec.noteIdx][rec.assetIdx] = true
	}

	filtered := make([]sproutbook.Note, 0, len(notes))
	for ni := range notes {
		note := notes[ni]
		if len(note.Media) == 0 {
			filtered = append(filtered, note)
			continue
		}
		sel := keep[ni]
		if len(sel) == 0 {
			continue
		}
		media := make([]sproutbook.Asset, 0, len(sel))
		for ai := range note.Media {
			if sel[ai] {
				media = append(media, note.Media[ai])
			}
		}
		note.Media = media
		filtered = append(filtered, note)
	}
	return filtered
}
