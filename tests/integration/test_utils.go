package integration

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nestsync/pkg/config"
	"nestsync/pkg/logger"
	"nestsync/pkg/sproutbook"
	"nestsync/pkg/stamp"
	"nestsync/pkg/watermark"
)

const (
	testAccountID     = "acct-1"
	testSessionCookie = "itest-session"
)

// TestHelper bundles the mock service, a scratch directory, and config
// plumbing shared by the integration tests.
type TestHelper struct {
	t          *testing.T
	mockServer *MockSproutbookServer
	tempDir    string
	cleanups   []func()
}

// NewTestHelper creates a helper rooted in a per-test temp directory.
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{
		t:       t,
		tempDir: t.TempDir(),
	}
}

// SetupMockServer starts the mock Sproutbook service and registers its
// shutdown with the helper.
func (h *TestHelper) SetupMockServer() *MockSproutbookServer {
	h.mockServer = NewMockSproutbookServer()
	h.AddCleanup(h.mockServer.Close)
	return h.mockServer
}

// GetTempDir returns the scratch directory for test files.
func (h *TestHelper) GetTempDir() string {
	return h.tempDir
}

// AddCleanup registers a function to run when the test ends.
func (h *TestHelper) AddCleanup(fn func()) {
	h.cleanups = append(h.cleanups, fn)
}

// Cleanup runs registered cleanups in reverse order.
func (h *TestHelper) Cleanup() {
	for i := len(h.cleanups) - 1; i >= 0; i-- {
		h.cleanups[i]()
	}
}

// CreateTestConfig returns a config wired to the mock service: fast
// timings, a fixed two-day sync window, and a scratch output tree. The
// window end pins the initial cursor so pagination is reproducible.
func (h *TestHelper) CreateTestConfig() *config.Config {
	cfg := config.DefaultConfig()

	cfg.Service.BaseURL = h.mockServer.GetURL()
	cfg.Service.AccountID = testAccountID
	cfg.Service.SessionCookie = testSessionCookie
	cfg.Service.UserAgent = "nestsync-test/1.0"
	cfg.Service.RequestTimeout = config.Duration(5 * time.Second)

	cfg.Sync.End = "2024-03-05 18:00:00"
	cfg.Sync.PageSize = 2
	cfg.Sync.PageDelay = 0
	cfg.Sync.RetryAttempts = 3
	cfg.Sync.RetryDelay = config.Duration(time.Millisecond)
	cfg.Sync.Timezone = "UTC"
	cfg.Sync.StateFile = filepath.Join(h.tempDir, "state.json")

	cfg.RateLimit.RequestsPerMinute = 6000
	cfg.RateLimit.BurstSize = 100

	cfg.Download.ConcurrentDownloads = 3
	cfg.Download.DownloadTimeout = config.Duration(5 * time.Second)

	cfg.Output.BaseDirectory = filepath.Join(h.tempDir, "media")
	cfg.Output.CreateChildFolders = true

	return cfg
}

// NewServiceClient builds a sproutbook client authenticated against the
// mock service with the config's session.
func (h *TestHelper) NewServiceClient(cfg *config.Config) *sproutbook.Client {
	client := sproutbook.NewClient(cfg.Service.BaseURL, time.Duration(cfg.Service.RequestTimeout), logger.NewNopLogger())
	client.SetMediaTimeout(time.Duration(cfg.Download.DownloadTimeout))
	client.SetSession(cfg.Service.SessionCookie, cfg.Service.AccountID, cfg.Service.UserAgent)
	return client
}

// SeedStandardFeed loads the mock service with one enrollment and a
// small feed spanning two days, four assets in total. With page size 2
// the walk takes two non-empty pages plus the exhausted probe.
func (h *TestHelper) SeedStandardFeed() {
	h.mockServer.AddEnrollment("e1", "Emma", "UTC")
	h.mockServer.AddNotes("e1",
		MockNote{
			ID: "n3", Time: "2024-03-05 14:00:00", Category: "photo", Comment: "Park day",
			Assets: []MockAsset{{ID: "a3", Key: "a3.jpg", MimeType: "image/jpeg"}},
		},
		MockNote{
			ID: "n2", Time: "2024-03-05 12:00:00", Category: "photo",
			Assets: []MockAsset{{ID: "a2", Key: "a2.jpg", MimeType: "image/jpeg"}},
		},
		MockNote{
			ID: "n1", Time: "2024-03-04 09:30:00", Category: "note", Comment: "Morning circle",
			Assets: []MockAsset{
				{ID: "a1a", Key: "a1a.jpg", MimeType: "image/jpeg"},
				{ID: "a1b", Key: "a1b.jpg", MimeType: "image/jpeg"},
			},
		},
	)
}

// LoadWatermark reads the persisted watermark for an enrollment, zero
// when the enrollment has no state yet.
func (h *TestHelper) LoadWatermark(cfg *config.Config, enrollmentID string) time.Time {
	store, err := watermark.NewStore(cfg.Sync.StateFile)
	if err != nil {
		h.t.Fatalf("open watermark store: %v", err)
	}
	state, err := store.Load()
	if err != nil {
		h.t.Fatalf("load watermark state: %v", err)
	}
	es, ok := state.Enrollments[enrollmentID]
	if !ok {
		return time.Time{}
	}
	return es.Watermark
}

// AssertFileExists fails the test when path is missing.
func (h *TestHelper) AssertFileExists(path string) {
	h.t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		h.t.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test when path is present.
func (h *TestHelper) AssertFileNotExists(path string) {
	h.t.Helper()
	if _, err := os.Stat(path); err == nil {
		h.t.Errorf("expected file to not exist: %s", path)
	}
}

// AssertDirFileCount checks the number of regular files directly in dir.
func (h *TestHelper) AssertDirFileCount(dir string, want int) {
	h.t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.t.Errorf("read directory %s: %v", dir, err)
		return
	}
	got := 0
	for _, e := range entries {
		if !e.IsDir() {
			got++
		}
	}
	if got != want {
		h.t.Errorf("directory %s holds %d files, want %d", dir, got, want)
	}
}

// AssertNoError fails the test immediately on a non-nil error.
func (h *TestHelper) AssertNoError(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("unexpected error: %v", err)
	}
}

// recordingStamper satisfies downloader.Stamper and records the files it
// was asked to stamp. Safe for concurrent use by pool workers.
type recordingStamper struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingStamper) Apply(path string, plan stamp.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingStamper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}
