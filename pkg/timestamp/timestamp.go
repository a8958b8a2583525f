// Package timestamp interprets the ambiguous time strings the Sproutbook
// feed emits and provides the cursor arithmetic pagination is built on.
package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Basis describes how a raw feed timestamp is anchored.
type Basis int

const (
	// Absolute values carry an explicit zone marker or are assumed UTC.
	Absolute Basis = iota
	// CivilLocal values are naive wall-clock strings that only become an
	// instant once combined with the enrollment's zone.
	CivilLocal
)

func (b Basis) String() string {
	if b == CivilLocal {
		return "civil-local"
	}
	return "absolute"
}

// Quantum is the smallest unit of feed time. Cursor math steps in whole
// quanta so an exclusive upper bound never re-includes a seen record.
const Quantum = time.Millisecond

// CursorLayout is the wall-clock form the feed accepts as an exclusive
// upper bound: millisecond precision, no zone marker.
const CursorLayout = "2006-01-02 15:04:05.000"

// ErrAbsent marks an empty or whitespace-only raw value. Callers treat it
// as "no timestamp", never as a parse failure.
var ErrAbsent = errors.New("timestamp absent")

// UnparsableError reports a non-empty value no accepted grammar matched.
type UnparsableError struct {
	Raw string
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("unparsable timestamp %q", e.Raw)
}

// Resolved is a fully anchored instant tagged with the basis it came from.
type Resolved struct {
	Time  time.Time
	Basis Basis
}

// IsZero reports whether r holds no instant.
func (r Resolved) IsZero() bool {
	return r.Time.IsZero()
}

// Zone-marked grammars, strict before relaxed.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
}

// Naked wall-clock grammars, strict before relaxed. Fractional seconds
// after the seconds field are accepted by time.Parse without a layout hint.
var nakedLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse interprets a raw feed timestamp under the given basis. Civil-local
// values are anchored to loc; absolute values without a zone marker are
// anchored to UTC. A value that carries its own zone marker resolves as
// absolute regardless of the claimed basis.
func Parse(raw string, basis Basis, loc *time.Location) (Resolved, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Resolved{}, ErrAbsent
	}
	s = normalize(s)

	if t, ok := parseZoned(s); ok {
		return Resolved{Time: t, Basis: Absolute}, nil
	}

	if t, ok := parseEpoch(s); ok {
		return Resolved{Time: t, Basis: Absolute}, nil
	}

	anchor := time.UTC
	if basis == CivilLocal && loc != nil {
		anchor = loc
	}
	for _, layout := range nakedLayouts {
		if t, err := time.ParseInLocation(layout, s, anchor); err == nil {
			return Resolved{Time: t, Basis: basis}, nil
		}
	}

	return Resolved{}, &UnparsableError{Raw: raw}
}

// normalize rewrites the feed's space-separated form to the 'T' form so a
// single layout set covers both.
func normalize(s string) string {
	if len(s) > 10 && s[10] == ' ' && s[4] == '-' && s[7] == '-' {
		return s[:10] + "T" + s[11:]
	}
	return s
}

func parseZoned(s string) (time.Time, bool) {
	if !hasZoneMarker(s) {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// hasZoneMarker detects a trailing Z or a +hh:mm / -hhmm offset after the
// time-of-day part. Offsets inside the date are never markers.
func hasZoneMarker(s string) bool {
	if strings.HasSuffix(s, "Z") {
		return true
	}
	if len(s) > 11 && strings.ContainsAny(s[11:], "+-") {
		return true
	}
	return false
}

// parseEpoch accepts bare Unix seconds (10 digits) or milliseconds (13
// digits), a relaxed grammar some feed exports use.
func parseEpoch(s string) (time.Time, bool) {
	if len(s) != 10 && len(s) != 13 {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if len(s) == 13 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

// FormatCursor renders t as a feed cursor wall clock in loc. Civil-local
// instants round-trip through the same zone they were parsed in, so the
// rendered wall clock matches the feed's own convention.
func FormatCursor(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(CursorLayout)
}

// InitialCursor returns local midnight of the day after end: the widest
// exclusive upper bound that still covers end itself.
func InitialCursor(end time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := end.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// StepBack moves a cursor instant one quantum earlier.
func StepBack(t time.Time) time.Time {
	return t.Add(-Quantum)
}
