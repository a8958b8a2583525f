package sproutbook

import (
	"strconv"
	"strings"
	"time"

	"nestsync/pkg/timestamp"
)

// candidate pairs a raw field value with the basis its field name implies.
type candidate struct {
	value string
	basis timestamp.Basis
}

// timeCandidates returns a note's timestamp fields in resolution order:
// absolute synonyms before civil-local ones.
func (n *Note) timeCandidates() []candidate {
	return []candidate{
		{string(n.EventTime), timestamp.Absolute},
		{string(n.CreatedAt), timestamp.Absolute},
		{string(n.NoteTime), timestamp.CivilLocal},
		{string(n.LocalTime), timestamp.CivilLocal},
	}
}

// timeCandidates returns an asset's timestamp fields in resolution order:
// basis-classified fields first, then the generic timestamp which follows
// absolute rules.
func (a *Asset) timeCandidates() []candidate {
	return []candidate{
		{string(a.CaptureTime), timestamp.Absolute},
		{string(a.CreatedAt), timestamp.Absolute},
		{string(a.CaptureTimeLocal), timestamp.CivilLocal},
		{string(a.TakenAt), timestamp.CivilLocal},
		{string(a.Timestamp), timestamp.Absolute},
	}
}

// resolveFirst walks candidates in order and returns the first that
// parses. Absent and unparsable values both just move to the next
// synonym; a single bad field never fails the record.
func resolveFirst(cands []candidate, loc *time.Location) (timestamp.Resolved, bool) {
	for _, c := range cands {
		r, err := timestamp.Parse(c.value, c.basis, loc)
		if err != nil {
			continue
		}
		return r, true
	}
	return timestamp.Resolved{}, false
}

// ResolveNoteTime resolves a note's instant from its own fields, falling
// back to the first asset that carries a usable time. ok is false when
// nothing on the record resolves.
func ResolveNoteTime(n *Note, loc *time.Location) (timestamp.Resolved, bool) {
	if r, ok := resolveFirst(n.timeCandidates(), loc); ok {
		return r, true
	}
	for i := range n.Media {
		if r, ok := resolveFirst(n.Media[i].timeCandidates(), loc); ok {
			return r, true
		}
	}
	return timestamp.Resolved{}, false
}

// ResolveAssetTime resolves an asset's instant: the asset's own fields
// first, then the parent note's resolved time.
func ResolveAssetTime(a *Asset, parent *Note, loc *time.Location) (timestamp.Resolved, bool) {
	if r, ok := resolveFirst(a.timeCandidates(), loc); ok {
		return r, true
	}
	if parent != nil {
		if r, ok := ResolveNoteTime(parent, loc); ok {
			return r, true
		}
	}
	return timestamp.Resolved{}, false
}

// LatestNoteTime returns the newest resolved instant across notes.
func LatestNoteTime(notes []Note, loc *time.Location) (time.Time, bool) {
	var latest time.Time
	found := false
	for i := range notes {
		r, ok := ResolveNoteTime(&notes[i], loc)
		if !ok {
			continue
		}
		if !found || r.Time.After(latest) {
			latest = r.Time
			found = true
		}
	}
	return latest, found
}

// OldestNoteTime returns the oldest resolved instant in a page. The next
// pagination cursor is derived from it.
func OldestNoteTime(notes []Note, loc *time.Location) (timestamp.Resolved, bool) {
	var oldest timestamp.Resolved
	found := false
	for i := range notes {
		r, ok := ResolveNoteTime(&notes[i], loc)
		if !ok {
			continue
		}
		if !found || r.Time.Before(oldest.Time) {
			oldest = r
			found = true
		}
	}
	return oldest, found
}

// EnrollmentZone picks the target zone for an enrollment: an explicit
// override first, then the enrollment's named zone hints, then a bare UTC
// offset, and finally the process-local zone.
func EnrollmentZone(e *Enrollment, override string) *time.Location {
	if override != "" {
		if loc, err := time.LoadLocation(override); err == nil {
			return loc
		}
	}
	if e != nil {
		for _, name := range []string{e.Timezone, e.TZ} {
			if name == "" {
				continue
			}
			if loc, err := time.LoadLocation(name); err == nil {
				return loc
			}
		}
		if off := strings.TrimSpace(e.UTCOffset); off != "" {
			if secs, ok := parseUTCOffset(off); ok {
				return time.FixedZone("UTC"+off, secs)
			}
		}
	}
	return time.Local
}

// parseUTCOffset accepts +hh:mm, -hh:mm, +hhmm, and +hh forms.
func parseUTCOffset(s string) (int, bool) {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return 0, false
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	rest := strings.ReplaceAll(s[1:], ":", "")
	if len(rest) != 2 && len(rest) != 4 {
		return 0, false
	}
	hh, err := strconv.Atoi(rest[:2])
	if err != nil || hh > 14 {
		return 0, false
	}
	mm := 0
	if len(rest) == 4 {
		mm, err = strconv.Atoi(rest[2:])
		if err != nil || mm > 59 {
			return 0, false
		}
	}
	return sign * (hh*3600 + mm*60), true
}
