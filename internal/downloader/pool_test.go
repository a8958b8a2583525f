package downloader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errs "nestsync/pkg/errors"
	"nestsync/pkg/logger"
	"nestsync/pkg/ratelimit"
	"nestsync/pkg/stamp"
)

// newTestPool silences log output for tests that only assert results.
func newTestPool(workers int, fetcher MediaFetcher, store MediaStore, stamper Stamper, rl ratelimit.Limiter) *WorkerPool {
	return NewPool(workers, fetcher, store, stamper, rl, logger.NewNopLogger())
}

// mockFetcher serves a fixed body, failing for URLs in failFor.
type mockFetcher struct {
	delay   time.Duration
	failFor map[string]error
	counter int32
}

func (m *mockFetcher) DownloadAsset(url string) (io.ReadCloser, int64, error) {
	atomic.AddInt32(&m.counter, 1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := m.failFor[url]; err != nil {
		return nil, 0, err
	}
	body := "mock asset data"
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func (m *mockFetcher) fetchCount() int {
	return int(atomic.LoadInt32(&m.counter))
}

// mockStore records saves in memory.
type mockStore struct {
	saved   map[string]bool
	saveErr error
	mu      sync.Mutex
}

func newMockStore() *mockStore {
	return &mockStore{saved: make(map[string]bool)}
}

func (m *mockStore) Has(relPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[relPath]
}

func (m *mockStore) Save(r io.Reader, relPath string) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[relPath] = true
	return n, nil
}

func (m *mockStore) Path(relPath string) string {
	return filepath.Join("/out", filepath.FromSlash(relPath))
}

func (m *mockStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// mockStamper records applied paths.
type mockStamper struct {
	applied []string
	err     error
	mu      sync.Mutex
}

func (m *mockStamper) Apply(path string, plan stamp.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, path)
	return nil
}

func (m *mockStamper) appliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func collectResults(pool *WorkerPool) (*sync.WaitGroup, *[]Result) {
	var results []Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()
	return &wg, &results
}

func testPlan() *stamp.Plan {
	plan := stamp.BuildPlan(stamp.ClassRichRaster, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), time.UTC, "caption")
	return &plan
}

func TestPoolDownloadsAndStamps(t *testing.T) {
	fetcher := &mockFetcher{delay: 5 * time.Millisecond}
	store := newMockStore()
	stamper := &mockStamper{}
	limiter := ratelimit.NewTokenBucket(100, time.Second)

	pool := newTestPool(3, fetcher, store, stamper, limiter)
	pool.Start()
	wg, results := collectResults(pool)

	numJobs := 10
	for i := 0; i < numJobs; i++ {
		job := Job{
			URL:          fmt.Sprintf("https://media.example.com/asset%d.jpg", i),
			RelPath:      fmt.Sprintf("emma/2024-03-01_n%d_01.jpg", i),
			EnrollmentID: "enr-1",
			Plan:         testPlan(),
		}
		if err := pool.Submit(job); err != nil {
			t.Errorf("Failed to submit job %d: %v", i, err)
		}
	}

	pool.Stop()
	wg.Wait()

	if len(*results) != numJobs {
		t.Fatalf("Expected %d results, got %d", numJobs, len(*results))
	}
	for _, r := range *results {
		if !r.Success {
			t.Errorf("Expected success for %s: %v", r.Job.RelPath, r.Error)
		}
		if !r.Stamped {
			t.Errorf("Expected %s to be stamped", r.Job.RelPath)
		}
		if r.Size != int64(len("mock asset data")) {
			t.Errorf("Unexpected size %d for %s", r.Size, r.Job.RelPath)
		}
	}
	if store.savedCount() != numJobs {
		t.Errorf("Expected %d saved assets, got %d", numJobs, store.savedCount())
	}
	if stamper.appliedCount() != numJobs {
		t.Errorf("Expected %d stamped assets, got %d", numJobs, stamper.appliedCount())
	}
}

func TestPoolSkipsExisting(t *testing.T) {
	fetcher := &mockFetcher{}
	store := newMockStore()
	store.saved["emma/existing.jpg"] = true
	stamper := &mockStamper{}

	pool := newTestPool(2, fetcher, store, stamper, nil)
	pool.Start()
	wg, results := collectResults(pool)

	jobs := []Job{
		{URL: "https://media.example.com/a.jpg", RelPath: "emma/existing.jpg", Plan: testPlan()},
		{URL: "https://media.example.com/b.jpg", RelPath: "emma/new.jpg", Plan: testPlan()},
	}
	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			t.Fatal(err)
		}
	}
	pool.Stop()
	wg.Wait()

	if fetcher.fetchCount() != 1 {
		t.Errorf("Expected 1 fetch, got %d", fetcher.fetchCount())
	}

	skipped := 0
	for _, r := range *results {
		if r.Skipped {
			skipped++
			if !r.Success {
				t.Error("Expected skipped result to count as success")
			}
			if r.Stamped {
				t.Error("Expected skipped result not to be re-stamped")
			}
		}
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped result, got %d", skipped)
	}
}

func TestPoolIsolatesDownloadFailure(t *testing.T) {
	fetcher := &mockFetcher{failFor: map[string]error{
		"https://media.example.com/broken.jpg": errs.New(errs.ErrorTypeNetwork, "connection reset"),
	}}
	store := newMockStore()

	pool := newTestPool(2, fetcher, store, &mockStamper{}, nil)
	pool.Start()
	wg, results := collectResults(pool)

	jobs := []Job{
		{URL: "https://media.example.com/broken.jpg", RelPath: "emma/broken.jpg"},
		{URL: "https://media.example.com/fine.jpg", RelPath: "emma/fine.jpg"},
	}
	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			t.Fatal(err)
		}
	}
	pool.Stop()
	wg.Wait()

	if len(*results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(*results))
	}

	var failed, succeeded *Result
	for i := range *results {
		if (*results)[i].Job.RelPath == "emma/broken.jpg" {
			failed = &(*results)[i]
		} else {
			succeeded = &(*results)[i]
		}
	}
	if failed == nil || succeeded == nil {
		t.Fatal("Missing expected results")
	}

	if failed.Success {
		t.Error("Expected broken download to fail")
	}
	if !errs.IsType(failed.Error, errs.ErrorTypeAssetFetch) {
		t.Errorf("Expected asset_fetch error, got %v", failed.Error)
	}
	if !succeeded.Success {
		t.Errorf("Expected sibling download to succeed: %v", succeeded.Error)
	}
	if !store.Has("emma/fine.jpg") {
		t.Error("Expected sibling asset on disk")
	}
}

func TestPoolSaveFailure(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("disk full")

	pool := newTestPool(1, &mockFetcher{}, store, nil, nil)
	pool.Start()
	wg, results := collectResults(pool)

	if err := pool.Submit(Job{URL: "https://media.example.com/a.jpg", RelPath: "emma/a.jpg"}); err != nil {
		t.Fatal(err)
	}
	pool.Stop()
	wg.Wait()

	if len(*results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(*results))
	}
	r := (*results)[0]
	if r.Success {
		t.Error("Expected save failure to fail the job")
	}
	if !errs.IsType(r.Error, errs.ErrorTypeStorage) {
		t.Errorf("Expected storage error, got %v", r.Error)
	}
}

func TestPoolStampFailureKeepsFile(t *testing.T) {
	store := newMockStore()
	stamper := &mockStamper{err: errs.New(errs.ErrorTypeMetadata, "exiftool not found")}

	pool := newTestPool(1, &mockFetcher{}, store, stamper, nil)
	pool.Start()
	wg, results := collectResults(pool)

	if err := pool.Submit(Job{URL: "https://media.example.com/a.jpg", RelPath: "emma/a.jpg", Plan: testPlan()}); err != nil {
		t.Fatal(err)
	}
	pool.Stop()
	wg.Wait()

	r := (*results)[0]
	if !r.Success {
		t.Error("Expected delivery to succeed despite stamp failure")
	}
	if r.Stamped {
		t.Error("Expected Stamped to be false")
	}
	if !errs.IsType(r.Error, errs.ErrorTypeMetadata) {
		t.Errorf("Expected metadata error, got %v", r.Error)
	}
	if !store.Has("emma/a.jpg") {
		t.Error("Expected file to remain on disk")
	}
}

func TestPoolNilStamper(t *testing.T) {
	store := newMockStore()

	pool := newTestPool(1, &mockFetcher{}, store, nil, nil)
	pool.Start()
	wg, results := collectResults(pool)

	if err := pool.Submit(Job{URL: "https://media.example.com/a.jpg", RelPath: "emma/a.jpg", Plan: testPlan()}); err != nil {
		t.Fatal(err)
	}
	pool.Stop()
	wg.Wait()

	r := (*results)[0]
	if !r.Success || r.Stamped || r.Error != nil {
		t.Errorf("Expected plain delivery without stamping, got %+v", r)
	}
}

func TestPoolSubmitAfterStop(t *testing.T) {
	pool := newTestPool(1, &mockFetcher{}, newMockStore(), nil, nil)
	pool.Start()
	wg, _ := collectResults(pool)
	pool.Stop()
	wg.Wait()

	if err := pool.Submit(Job{URL: "https://media.example.com/a.jpg", RelPath: "a.jpg"}); err == nil {
		t.Error("Expected submit after stop to fail")
	}
}
