// Package integration exercises the sync pipeline end to end against an
// in-process Sproutbook lookalike.
package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Seeded note times are bare wall clocks while cursors carry milliseconds.
// Both parse here so bound comparison is chronological; comparing the raw
// strings would misplace records exactly on a cursor boundary.
var feedTimeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

func parseFeedTime(s string) (time.Time, bool) {
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MockNote seeds one feed record on the mock service.
type MockNote struct {
	ID       string
	Time     string // wall clock, "2006-01-02 15:04:05"
	Category string
	Comment  string
	Assets   []MockAsset
}

// MockAsset seeds one attachment. Key addresses the media endpoint; the
// served payload is deterministic per key so tests can verify bytes
// without fixture files.
type MockAsset struct {
	ID       string
	Key      string
	MimeType string
}

type mockEnrollment struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

// errorRule is one configured failure. remaining < 0 repeats until
// cleared; a positive count burns down one request at a time.
type errorRule struct {
	code      int
	remaining int
}

// MockSproutbookServer simulates the vendor API: enrollment listing,
// backward cursor pagination over a seeded feed, and media downloads,
// with per-path error injection and optional session enforcement.
type MockSproutbookServer struct {
	server *httptest.Server

	mu          sync.RWMutex
	enrollments []mockEnrollment
	feeds       map[string][]MockNote
	errors      map[string]*errorRule
	delays      map[string]time.Duration
	cursors     map[string][]string

	sessionCookie string
	accountID     string

	requestCount   int32
	notesRequests  int32
	mediaRequests  int32
	rateLimitEvery int32
	rateLimitHits  int32
}

// NewMockSproutbookServer starts an empty mock service. Tests seed it
// with AddEnrollment and AddNotes before pointing a client at GetURL.
func NewMockSproutbookServer() *MockSproutbookServer {
	m := &MockSproutbookServer{
		feeds:   make(map[string][]MockNote),
		errors:  make(map[string]*errorRule),
		delays:  make(map[string]time.Duration),
		cursors: make(map[string][]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/enrollments", m.handleEnrollments)
	mux.HandleFunc("/api/v1/notes", m.handleNotes)
	mux.HandleFunc("/api/v1/media/", m.handleMedia)

	m.server = httptest.NewServer(mux)
	return m
}

// AddEnrollment seeds one child on the account.
func (m *MockSproutbookServer) AddEnrollment(id, name, tz string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments = append(m.enrollments, mockEnrollment{ID: id, DisplayName: name, Timezone: tz})
}

// AddNotes seeds feed records for an enrollment. Seed order does not
// matter; pages are always served newest first.
func (m *MockSproutbookServer) AddNotes(enrollmentID string, notes ...MockNote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds[enrollmentID] = append(m.feeds[enrollmentID], notes...)
}

// RequireSession makes every endpoint reject requests that do not carry
// the given session cookie and account header.
func (m *MockSproutbookServer) RequireSession(cookie, accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionCookie = cookie
	m.accountID = accountID
}

// SetErrorResponse makes a path fail with code until cleared.
func (m *MockSproutbookServer) SetErrorResponse(path string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[path] = &errorRule{code: code, remaining: -1}
}

// SetErrorResponseTimes makes a path fail with code for the next times
// requests, then recover on its own. This is how retry tests stay
// deterministic.
func (m *MockSproutbookServer) SetErrorResponseTimes(path string, code, times int) {
	if times <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[path] = &errorRule{code: code, remaining: times}
}

// ClearErrorResponse removes the failure rule for a path.
func (m *MockSproutbookServer) ClearErrorResponse(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errors, path)
}

// SetDelay adds a fixed latency to a path.
func (m *MockSproutbookServer) SetDelay(path string, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[path] = delay
}

// RateLimitEvery makes every nth request answer 429. Zero disables,
// which is the default; tests opt in so unrelated runs stay green.
func (m *MockSproutbookServer) RateLimitEvery(n int) {
	atomic.StoreInt32(&m.rateLimitEvery, int32(n))
}

// gate runs the shared per-request checks: counting, latency, session
// enforcement, error injection, and rate limiting. A false return means
// the response has been written.
func (m *MockSproutbookServer) gate(w http.ResponseWriter, r *http.Request) bool {
	atomic.AddInt32(&m.requestCount, 1)

	if delay := m.delayFor(r.URL.Path); delay > 0 {
		time.Sleep(delay)
	}
	if !m.authorized(r) {
		writeJSONError(w, http.StatusUnauthorized, "session expired")
		return false
	}
	if code := m.takeError(r.URL.Path); code > 0 {
		writeJSONError(w, code, http.StatusText(code))
		return false
	}
	if m.shouldRateLimit() {
		atomic.AddInt32(&m.rateLimitHits, 1)
		w.Header().Set("Retry-After", "60")
		writeJSONError(w, http.StatusTooManyRequests, "slow down")
		return false
	}
	return true
}

func (m *MockSproutbookServer) authorized(r *http.Request) bool {
	m.mu.RLock()
	cookie, account := m.sessionCookie, m.accountID
	m.mu.RUnlock()

	if cookie == "" {
		return true
	}
	if !strings.Contains(r.Header.Get("Cookie"), "sbsession="+cookie) {
		return false
	}
	return account == "" || r.Header.Get("X-Account-Id") == account
}

// takeError returns the configured failure code for a path, burning one
// request off a counted rule.
func (m *MockSproutbookServer) takeError(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.errors[path]
	if !ok {
		return 0
	}
	if rule.remaining > 0 {
		rule.remaining--
		if rule.remaining == 0 {
			delete(m.errors, path)
		}
	}
	return rule.code
}

func (m *MockSproutbookServer) delayFor(path string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delays[path]
}

func (m *MockSproutbookServer) shouldRateLimit() bool {
	every := atomic.LoadInt32(&m.rateLimitEvery)
	if every <= 0 {
		return false
	}
	return atomic.LoadInt32(&m.requestCount)%every == 0
}

func (m *MockSproutbookServer) handleEnrollments(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}

	account := r.URL.Query().Get("account")
	m.mu.RLock()
	list := make([]mockEnrollment, len(m.enrollments))
	copy(list, m.enrollments)
	expected := m.accountID
	m.mu.RUnlock()

	if expected != "" && account != expected {
		writeJSONError(w, http.StatusNotFound, "unknown account")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"enrollments": list})
}

func (m *MockSproutbookServer) handleNotes(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.notesRequests, 1)
	if !m.gate(w, r) {
		return
	}

	q := r.URL.Query()
	enrollmentID := q.Get("enrollment")
	if enrollmentID == "" {
		writeJSONError(w, http.StatusBadRequest, "enrollment required")
		return
	}

	count := 100
	if v := q.Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}
	var categories []string
	if v := q.Get("categories"); v != "" {
		categories = strings.Split(v, ",")
	}

	before := q.Get("before")
	bound, bounded := parseFeedTime(before)

	m.mu.Lock()
	m.cursors[enrollmentID] = append(m.cursors[enrollmentID], before)
	notes := make([]MockNote, len(m.feeds[enrollmentID]))
	copy(notes, m.feeds[enrollmentID])
	m.mu.Unlock()

	sort.SliceStable(notes, func(i, j int) bool {
		ti, _ := parseFeedTime(notes[i].Time)
		tj, _ := parseFeedTime(notes[j].Time)
		return ti.After(tj)
	})

	page := make([]map[string]interface{}, 0, count)
	for _, n := range notes {
		t, ok := parseFeedTime(n.Time)
		if !ok {
			continue
		}
		// The before cursor is an exclusive upper bound.
		if bounded && !t.Before(bound) {
			continue
		}
		if len(categories) > 0 && !containsCategory(categories, n.Category) {
			continue
		}
		page = append(page, noteJSON(n))
		if len(page) >= count {
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"notes": page})
}

func (m *MockSproutbookServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.mediaRequests, 1)
	if !m.gate(w, r) {
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/v1/media/")
	if key == "" {
		writeJSONError(w, http.StatusNotFound, "no such asset")
		return
	}

	payload := MediaPayload(key)
	w.Header().Set("Content-Type", contentTypeFor(key))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Write(payload)
}

func noteJSON(n MockNote) map[string]interface{} {
	media := make([]map[string]interface{}, 0, len(n.Assets))
	for _, a := range n.Assets {
		media = append(media, map[string]interface{}{
			"id":        a.ID,
			"key":       a.Key,
			"mime_type": a.MimeType,
		})
	}
	return map[string]interface{}{
		"id":        n.ID,
		"category":  n.Category,
		"comment":   n.Comment,
		"note_time": n.Time,
		"media":     media,
	}
}

func containsCategory(categories []string, category string) bool {
	for _, c := range categories {
		if strings.TrimSpace(c) == category {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// MediaPayload is the deterministic body served for a media key.
func MediaPayload(key string) []byte {
	seed := 0
	for _, b := range []byte(key) {
		seed += int(b)
	}
	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte((i + seed) % 251)
	}
	return data
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// GetURL returns the mock service's base URL.
func (m *MockSproutbookServer) GetURL() string {
	return m.server.URL
}

// Close shuts the mock service down.
func (m *MockSproutbookServer) Close() {
	m.server.Close()
}

// RequestCount returns the total number of requests served.
func (m *MockSproutbookServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// NotesRequestCount returns the number of feed page requests, including
// ones answered with an injected error.
func (m *MockSproutbookServer) NotesRequestCount() int {
	return int(atomic.LoadInt32(&m.notesRequests))
}

// MediaRequestCount returns the number of media download attempts.
func (m *MockSproutbookServer) MediaRequestCount() int {
	return int(atomic.LoadInt32(&m.mediaRequests))
}

// RateLimitHits returns the number of 429 responses sent.
func (m *MockSproutbookServer) RateLimitHits() int {
	return int(atomic.LoadInt32(&m.rateLimitHits))
}

// CursorsSeen returns the before cursors received for an enrollment, in
// request order.
func (m *MockSproutbookServer) CursorsSeen(enrollmentID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.cursors[enrollmentID]))
	copy(out, m.cursors[enrollmentID])
	return out
}

// ResetCounters zeroes the request counters and cursor history.
func (m *MockSproutbookServer) ResetCounters() {
	atomic.StoreInt32(&m.requestCount, 0)
	atomic.StoreInt32(&m.notesRequests, 0)
	atomic.StoreInt32(&m.mediaRequests, 0)
	atomic.StoreInt32(&m.rateLimitHits, 0)
	m.mu.Lock()
	m.cursors = make(map[string][]string)
	m.mu.Unlock()
}
