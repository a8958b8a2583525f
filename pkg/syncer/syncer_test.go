package syncer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"nestsync/pkg/config"
	errs "nestsync/pkg/errors"
	"nestsync/pkg/feed"
	"nestsync/pkg/sproutbook"
	"nestsync/pkg/stamp"
	"nestsync/pkg/watermark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts the vendor API: pages are keyed by enrollment id
// and cursor string, missing keys read as an empty (exhausted) page.
type fakeClient struct {
	mu          sync.Mutex
	enrollments []sproutbook.Enrollment
	pages       map[string]map[string][]sproutbook.Note
	feedErrs    map[string]error
	cursors     []string
	downloads   []string
}

func (f *fakeClient) FetchEnrollments(accountID string) ([]sproutbook.Enrollment, error) {
	return f.enrollments, nil
}

func (f *fakeClient) FetchNotesPage(enrollmentID, before string, count int, categories []string) ([]sproutbook.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, enrollmentID+"|"+before)
	if err := f.feedErrs[enrollmentID]; err != nil {
		return nil, err
	}
	return f.pages[enrollmentID][before], nil
}

func (f *fakeClient) DownloadAsset(assetURL string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, assetURL)
	body := "asset-bytes:" + assetURL
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func (f *fakeClient) BaseURL() string {
	return "https://api.sproutbook.test"
}

func (f *fakeClient) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.downloads)
}

func (f *fakeClient) fetchedCursors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cursors))
	copy(out, f.cursors)
	return out
}

// fakeStamper records the plans the pool applies.
type fakeStamper struct {
	mu      sync.Mutex
	applied map[string]stamp.Plan
}

func (f *fakeStamper) Apply(path string, plan stamp.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applied == nil {
		f.applied = make(map[string]stamp.Plan)
	}
	f.applied[path] = plan
	return nil
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Service.AccountID = "acct-1"
	cfg.Sync.End = "2024-03-05 18:00:00"
	cfg.Sync.Timezone = "UTC"
	cfg.Sync.PageDelay = 0
	cfg.Sync.RetryDelay = config.Duration(time.Millisecond)
	cfg.Sync.StateFile = filepath.Join(dir, "state.json")
	cfg.Output.BaseDirectory = filepath.Join(dir, "media")
	return cfg
}

func emma() sproutbook.Enrollment {
	return sproutbook.Enrollment{ID: "e1", DisplayName: "Emma", Timezone: "UTC"}
}

func TestRunFullSync(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
					{ID: "n2", NoteTime: "2024-03-05 11:00:00", Media: []sproutbook.Asset{
						{ID: "a2", URL: "https://cdn.test/a2.jpg", MimeType: "image/jpeg"},
					}},
				},
				"2024-03-05 10:59:59.999": {
					{ID: "n3", NoteTime: "2024-03-04 09:00:00", Media: []sproutbook.Asset{
						{ID: "a3", URL: "https://cdn.test/a3.png", MimeType: "image/png"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	assert.False(t, report.HasFailures())

	require.Len(t, report.Enrollments, 1)
	er := report.Enrollments[0]
	assert.Equal(t, "e1", er.EnrollmentID)
	assert.Equal(t, "Emma", er.Name)
	assert.Equal(t, feed.StopExhausted, er.StopReason)
	assert.Equal(t, 2, er.Pages)
	assert.Equal(t, 3, er.NotesSeen)
	assert.Equal(t, 3, er.NotesNew)
	assert.Equal(t, 3, er.NotesSynced)
	assert.Equal(t, 3, er.Downloaded)
	assert.Equal(t, 0, er.FailedAssets)
	assert.False(t, er.Limited)

	wantWM := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	assert.True(t, er.Advanced)
	assert.True(t, er.Watermark.Equal(wantWM), "watermark = %v", er.Watermark)

	for _, name := range []string{
		"Emma/2024-03-05_n1_01.jpg",
		"Emma/2024-03-05_n2_01.jpg",
		"Emma/2024-03-04_n3_01.png",
	} {
		_, statErr := os.Stat(filepath.Join(cfg.Output.BaseDirectory, filepath.FromSlash(name)))
		assert.NoError(t, statErr, "expected %s on disk", name)
	}

	store, err := watermark.NewStore(cfg.Sync.StateFile)
	require.NoError(t, err)
	state, err := store.Load()
	require.NoError(t, err)
	es := state.Enrollments["e1"]
	require.NotNil(t, es)
	assert.Equal(t, "Emma", es.Name)
	assert.True(t, es.Watermark.Equal(wantWM))
	assert.Equal(t, 3, es.NotesSynced)
	assert.Equal(t, 3, es.AssetsDownloaded)
}

func TestRunSecondPassDownloadsNothing(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
					{ID: "n2", NoteTime: "2024-03-05 11:00:00", Media: []sproutbook.Asset{
						{ID: "a2", URL: "https://cdn.test/a2.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s1, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report1, err := s1.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report1.Synced)
	require.Equal(t, 2, fake.downloadCount())

	wm := report1.Enrollments[0].Watermark

	// A fresh syncer over the same static feed resumes just past the
	// watermark, clips every already-seen note, and stops at the start
	// bound without touching media.
	s2, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report2, err := s2.Run(context.Background())
	require.NoError(t, err)

	er2 := report2.Enrollments[0]
	assert.Equal(t, feed.StopStartReached, er2.StopReason)
	assert.Equal(t, 0, er2.NotesSeen)
	assert.Equal(t, 0, er2.NotesSynced)
	assert.Equal(t, 0, er2.Downloaded)
	assert.False(t, er2.Advanced)
	assert.True(t, er2.Watermark.Equal(wm), "watermark moved to %v", er2.Watermark)
	assert.Equal(t, 2, fake.downloadCount(), "second run must not download")

	store, err := watermark.NewStore(cfg.Sync.StateFile)
	require.NoError(t, err)
	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, state.Enrollments["e1"].NotesSynced)
}

func TestRunConfigStartOverridesWatermark(t *testing.T) {
	cfg := testConfig(t, t.TempDir())

	// Seed an old watermark, then configure an explicit later start.
	store, err := watermark.NewStore(cfg.Sync.StateFile)
	require.NoError(t, err)
	seeded, err := store.Load()
	require.NoError(t, err)
	seeded.Enrollment("e1").Watermark = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(seeded))

	cfg.Sync.Start = "2024-03-05 11:30:00"

	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
					{ID: "n2", NoteTime: "2024-03-05 11:00:00", Media: []sproutbook.Asset{
						{ID: "a2", URL: "https://cdn.test/a2.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	er := report.Enrollments[0]
	assert.Equal(t, feed.StopStartReached, er.StopReason)
	assert.Equal(t, 1, er.NotesSynced, "only the note after the configured start")
	assert.Equal(t, 1, er.Downloaded)
	assert.True(t, er.Watermark.Equal(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)))
}

func TestRunAssetCapTruncates(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Sync.AssetCap = 2

	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
						{ID: "a2", URL: "https://cdn.test/a2.jpg", MimeType: "image/jpeg"},
					}},
					{ID: "n2", NoteTime: "2024-03-05 11:00:00", Media: []sproutbook.Asset{
						{ID: "b1", URL: "https://cdn.test/b1.jpg", MimeType: "image/jpeg"},
					}},
					{ID: "n3", NoteTime: "2024-03-05 10:00:00", Media: []sproutbook.Asset{
						{ID: "c1", URL: "https://cdn.test/c1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	er := report.Enrollments[0]
	assert.Equal(t, 4, er.AssetsTotal)
	assert.Equal(t, 2, er.AssetsSelected)
	assert.True(t, er.Limited)
	assert.Equal(t, 2, er.Downloaded, "the two chronologically oldest assets")
	assert.Equal(t, 2, er.NotesSynced, "the fully trimmed note drops out")

	// The watermark follows the cap boundary, not the newest note seen,
	// so the next run resumes with the truncated tail.
	cutoff := time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)
	assert.True(t, er.Advanced)
	assert.True(t, er.Watermark.Equal(cutoff), "watermark = %v", er.Watermark)

	for _, url := range fake.downloads {
		assert.NotContains(t, url, "/a", "newest assets must be left for the next run")
	}
}

func TestRunMonitorStopsPaginationEarly(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Sync.AssetCap = 2

	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "na", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
						{ID: "a2", URL: "https://cdn.test/a2.jpg", MimeType: "image/jpeg"},
					}},
				},
				"2024-03-05 11:59:59.999": {
					{ID: "nb", NoteTime: "2024-03-05 11:00:00", Media: []sproutbook.Asset{
						{ID: "b1", URL: "https://cdn.test/b1.jpg", MimeType: "image/jpeg"},
					}},
				},
				"2024-03-05 10:59:59.999": {
					{ID: "nc", NoteTime: "2024-03-05 10:00:00", Media: []sproutbook.Asset{
						{ID: "c1", URL: "https://cdn.test/c1.jpg", MimeType: "image/jpeg"},
					}},
				},
				"2024-03-05 09:59:59.999": {
					{ID: "nd", NoteTime: "2024-03-05 09:00:00", Comment: "circle time"},
				},
				// Never reached: the boundary is stable before this page.
				"2024-03-05 08:59:59.999": {
					{ID: "ne", NoteTime: "2024-03-05 08:00:00", Media: []sproutbook.Asset{
						{ID: "e1a", URL: "https://cdn.test/e1a.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	er := report.Enrollments[0]
	assert.Equal(t, feed.StopRequested, er.StopReason)
	assert.Equal(t, 2, er.Downloaded)
	assert.True(t, er.Limited)

	cursors := fake.fetchedCursors()
	assert.Len(t, cursors, 4, "pagination must stop after the stable boundary")
	assert.NotContains(t, cursors, "e1|2024-03-05 08:59:59.999")

	cutoff := time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)
	assert.True(t, er.Watermark.Equal(cutoff), "watermark = %v", er.Watermark)
}

func TestRunDryRun(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	s.SetDryRun(true)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)

	er := report.Enrollments[0]
	assert.Equal(t, 1, er.NotesSynced)
	assert.Equal(t, 1, er.AssetsSelected)
	assert.Equal(t, 0, er.Downloaded)
	assert.False(t, er.Advanced)
	assert.Equal(t, 0, fake.downloadCount())

	_, statErr := os.Stat(cfg.Sync.StateFile)
	assert.True(t, os.IsNotExist(statErr), "dry run must not persist state")

	entries, readErr := os.ReadDir(cfg.Output.BaseDirectory)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "dry run must not write media")
}

func TestRunFatalFeedErrorIsolatesEnrollment(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{
			{ID: "e1", DisplayName: "Emma", Timezone: "UTC"},
			{ID: "e2", DisplayName: "Noah", Timezone: "UTC"},
		},
		feedErrs: map[string]error{
			"e1": errs.New(errs.ErrorTypeFeed, "unrecognized feed envelope"),
		},
		pages: map[string]map[string][]sproutbook.Note{
			"e2": {
				"2024-03-06 00:00:00.000": {
					{ID: "m1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "z1", URL: "https://cdn.test/z1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err, "run level error is reserved for run level failures")

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Synced)
	assert.True(t, report.HasFailures())

	require.Len(t, report.Enrollments, 2)
	failed := report.Enrollments[0]
	assert.Equal(t, "e1", failed.EnrollmentID)
	require.Error(t, failed.Err)
	assert.True(t, errs.IsType(failed.Err, errs.ErrorTypeFeed))
	assert.Equal(t, feed.StopFailed, failed.StopReason)
	assert.False(t, failed.Advanced)

	ok := report.Enrollments[1]
	assert.NoError(t, ok.Err)
	assert.Equal(t, 1, ok.Downloaded)
	assert.True(t, ok.Advanced)

	// A non-retryable feed error must not be retried.
	count := 0
	for _, c := range fake.fetchedCursors() {
		if strings.HasPrefix(c, "e1|") {
			count++
		}
	}
	assert.Equal(t, 1, count)

	store, err := watermark.NewStore(cfg.Sync.StateFile)
	require.NoError(t, err)
	state, err := store.Load()
	require.NoError(t, err)
	if es := state.Enrollments["e1"]; es != nil {
		assert.True(t, es.Watermark.IsZero(), "failed enrollment must not advance")
	}
	require.NotNil(t, state.Enrollments["e2"])
	assert.False(t, state.Enrollments["e2"].Watermark.IsZero())
}

func TestRunSkipsEnrollmentWithoutIdentity(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{
			{DisplayName: "Ghost"},
			emma(),
		},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Synced)

	require.Len(t, report.Enrollments, 2)
	assert.True(t, report.Enrollments[0].Skipped)
	assert.Equal(t, "Ghost", report.Enrollments[0].Name)
	assert.Equal(t, "missing identity", report.Enrollments[0].SkipReason)

	for _, c := range fake.fetchedCursors() {
		assert.True(t, strings.HasPrefix(c, "e1|"), "no fetches for the skipped enrollment")
	}
}

func TestRunFilterSelectsByName(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{
			emma(),
			{ID: "e2", DisplayName: "Noah", Timezone: "UTC"},
		},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
			"e2": {
				"2024-03-06 00:00:00.000": {
					{ID: "m1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "z1", URL: "https://cdn.test/z1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	s.SetFilter([]string{"noah"})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.Skipped)

	require.Len(t, report.Enrollments, 2)
	assert.True(t, report.Enrollments[0].Skipped)
	assert.Equal(t, "Emma", report.Enrollments[0].Name)
	assert.Equal(t, "not selected", report.Enrollments[0].SkipReason)
	assert.Equal(t, 1, report.Enrollments[1].Downloaded)

	for _, c := range fake.fetchedCursors() {
		assert.True(t, strings.HasPrefix(c, "e2|"), "no fetches for filtered-out enrollments")
	}
}

func TestRunFilterMatchesIdentity(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	s.SetFilter([]string{"e1"})

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 0, report.Skipped)
}

func TestRunRequiresAccountID(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Service.AccountID = ""

	s, err := New(cfg, &fakeClient{}, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfig))
}

func TestRunStampsDownloadedAssets(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Comment: "First day at the easel", Media: []sproutbook.Asset{
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg", CaptureTime: "2024-03-05 10:30:00"},
					}},
				},
			},
		},
	}

	stamper := &fakeStamper{}
	s, err := New(cfg, fake, stamper)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	er := report.Enrollments[0]
	assert.Equal(t, 1, er.Downloaded)
	assert.Equal(t, 1, er.Stamped)

	require.Len(t, stamper.applied, 1)
	for path, plan := range stamper.applied {
		assert.True(t, strings.HasSuffix(path, filepath.FromSlash("Emma/2024-03-05_n1_01.jpg")), "path = %s", path)
		assert.Equal(t, stamp.ClassRichRaster, plan.Class)
		assert.Equal(t, "2024:03:05 10:30:00", plan.Tags["EXIF:DateTimeOriginal"])
		assert.Equal(t, "First day at the easel", plan.Tags["EXIF:ImageDescription"])
	}
}

func TestRunSkipsVideosWhenConfigured(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Download.SkipVideos = true

	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "n1", NoteTime: "2024-03-05 12:00:00", Media: []sproutbook.Asset{
						{ID: "v1", URL: "https://cdn.test/v1.mp4", MimeType: "video/mp4"},
						{ID: "a1", URL: "https://cdn.test/a1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	s, err := New(cfg, fake, nil)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	er := report.Enrollments[0]
	assert.Equal(t, 1, er.Downloaded)
	require.Equal(t, 1, fake.downloadCount())
	assert.Contains(t, fake.downloads[0], "a1.jpg")
}

func TestRunUndatedNote(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	fake := &fakeClient{
		enrollments: []sproutbook.Enrollment{emma()},
		pages: map[string]map[string][]sproutbook.Note{
			"e1": {
				"2024-03-06 00:00:00.000": {
					{ID: "nx", Media: []sproutbook.Asset{
						{ID: "x1", URL: "https://cdn.test/x1.jpg", MimeType: "image/jpeg"},
					}},
				},
			},
		},
	}

	stamper := &fakeStamper{}
	s, err := New(cfg, fake, stamper)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	er := report.Enrollments[0]
	assert.Equal(t, feed.StopUnresolvable, er.StopReason)
	assert.Equal(t, 1, er.Downloaded)
	assert.Equal(t, 0, er.Stamped, "no instant, no stamp plan")
	assert.False(t, er.Advanced, "unresolvable instants never advance the watermark")

	_, statErr := os.Stat(filepath.Join(cfg.Output.BaseDirectory, "Emma", "undated_nx_01.jpg"))
	assert.NoError(t, statErr)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Emma", "Emma"},
		{"Emma R.", "Emma-R"},
		{"room/2 <stars>", "room-2--stars"},
		{"..", "enrollment"},
		{"", "enrollment"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), "sanitizeName(%q)", tt.in)
	}
}

func TestShortIdentity(t *testing.T) {
	assert.Equal(t, "note-42", shortIdentity("note-42"))
	assert.Equal(t, "0123456789ab", shortIdentity("fp:0123456789abcdef0123456789abcdef"))
}
