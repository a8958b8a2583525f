package sproutbook

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// flexString decodes a JSON string or number into a string. The feed is
// inconsistent about quoting ids and epoch timestamps.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(trimmed)
	return nil
}

// Enrollment is one child's enrollment on the parent account.
type Enrollment struct {
	ID          flexString `json:"id"`
	ChildID     flexString `json:"child_id"`
	DisplayName string     `json:"display_name"`
	FirstName   string     `json:"first_name"`
	Timezone    string     `json:"timezone"`
	TZ          string     `json:"tz"`
	UTCOffset   string     `json:"utc_offset"`
}

// Identity returns the enrollment's stable identifier, empty when the
// record carries none.
func (e *Enrollment) Identity() string {
	for _, id := range []string{string(e.ID), string(e.ChildID)} {
		if s := strings.TrimSpace(id); s != "" {
			return s
		}
	}
	return ""
}

// Name returns a printable name for logs and folder layout.
func (e *Enrollment) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	if e.FirstName != "" {
		return e.FirstName
	}
	return e.Identity()
}

// Note is one feed record: a teacher note, photo post, or video post.
// Several synonymous timestamp fields may be present; resolution order
// lives in resolve.go.
type Note struct {
	ID       flexString `json:"id"`
	NoteID   flexString `json:"note_id"`
	Key      flexString `json:"key"`
	Category string     `json:"category"`
	Comment  string     `json:"comment"`

	EventTime flexString `json:"event_time"`
	CreatedAt flexString `json:"created_at"`
	NoteTime  flexString `json:"note_time"`
	LocalTime flexString `json:"local_time"`

	Media []Asset `json:"media"`
}

// Asset is one downloadable media attachment on a note.
type Asset struct {
	ID       flexString `json:"id"`
	URL      string     `json:"url"`
	Key      string     `json:"key"`
	MimeType string     `json:"mime_type"`

	CaptureTime      flexString `json:"capture_time"`
	CreatedAt        flexString `json:"created_at"`
	CaptureTimeLocal flexString `json:"capture_time_local"`
	TakenAt          flexString `json:"taken_at"`
	Timestamp        flexString `json:"timestamp"`
}

// Identity returns the note's dedup key: the first non-empty id field,
// else a content fingerprint. Records without ids still dedup correctly
// across overlapping pages because the fingerprint is derived from the
// same bytes every time the record is served.
func (n *Note) Identity() string {
	for _, id := range []string{string(n.ID), string(n.NoteID), string(n.Key)} {
		if s := strings.TrimSpace(id); s != "" {
			return s
		}
	}
	return n.fingerprint()
}

func (n *Note) fingerprint() string {
	h := sha256.New()
	for _, part := range []string{
		string(n.EventTime), string(n.CreatedAt), string(n.NoteTime), string(n.LocalTime),
		n.Category, n.Comment,
	} {
		io.WriteString(h, part)
		h.Write([]byte{0})
	}
	for i := range n.Media {
		io.WriteString(h, n.Media[i].URL)
		h.Write([]byte{0})
		io.WriteString(h, n.Media[i].Key)
		h.Write([]byte{0})
	}
	return "fp:" + hex.EncodeToString(h.Sum(nil))
}

// DownloadURL resolves the asset's fetch location: an explicit url wins,
// else the media endpoint addressed by key.
func (a *Asset) DownloadURL(baseURL string) string {
	if a.URL != "" {
		return a.URL
	}
	if a.Key != "" {
		return fmt.Sprintf("%s%s/%s", baseURL, MediaEndpoint, url.PathEscape(a.Key))
	}
	return ""
}

// FileExt guesses the asset's file extension from its URL or key, falling
// back to the declared MIME type.
func (a *Asset) FileExt() string {
	if a.URL != "" {
		if u, err := url.Parse(a.URL); err == nil {
			if ext := strings.ToLower(path.Ext(u.Path)); validExt(ext) {
				return ext
			}
		}
	}
	if ext := strings.ToLower(path.Ext(a.Key)); validExt(ext) {
		return ext
	}
	switch strings.ToLower(a.MimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	default:
		return ".bin"
	}
}

func validExt(ext string) bool {
	return len(ext) >= 2 && len(ext) <= 6
}

// DecodeNotes accepts the envelope shapes the feed has been seen to
// return: a bare array, an object with a well-known list key, or an
// object keyed by record id. Key order in the keyed form is preserved.
func DecodeNotes(data []byte) ([]Note, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var notes []Note
		if err := json.Unmarshal(trimmed, &notes); err != nil {
			return nil, err
		}
		return notes, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("unexpected feed payload shape")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"notes", "events", "items", "data"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		inner := bytes.TrimSpace(raw)
		if len(inner) > 0 && inner[0] == '[' {
			var notes []Note
			if err := json.Unmarshal(inner, &notes); err != nil {
				return nil, err
			}
			return notes, nil
		}
		if len(inner) > 0 && inner[0] == '{' {
			return decodeKeyedNotes(inner)
		}
	}

	return decodeKeyedNotes(trimmed)
}

// decodeKeyedNotes walks a keyed object with json.Decoder so the records
// come out in document order; a plain map would scramble the page order
// the cursor math depends on.
func decodeKeyedNotes(data []byte) ([]Note, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("unexpected feed payload shape")
	}

	var notes []Note
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		inner := bytes.TrimSpace(raw)
		if len(inner) == 0 || inner[0] != '{' {
			// Scalar metadata next to the records, not a record itself
			continue
		}
		var n Note
		if err := json.Unmarshal(inner, &n); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}

	return notes, nil
}

// DecodeEnrollments accepts a bare array or an object with a well-known
// list key.
func DecodeEnrollments(data []byte) ([]Enrollment, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var enrollments []Enrollment
		if err := json.Unmarshal(trimmed, &enrollments); err != nil {
			return nil, err
		}
		return enrollments, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("unexpected enrollment payload shape")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"enrollments", "children", "items", "data"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var enrollments []Enrollment
		if err := json.Unmarshal(raw, &enrollments); err != nil {
			return nil, err
		}
		return enrollments, nil
	}

	return nil, fmt.Errorf("enrollment payload has no recognized list key")
}
