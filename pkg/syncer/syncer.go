package syncer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"nestsync/internal/downloader"
	"nestsync/pkg/config"
	errs "nestsync/pkg/errors"
	"nestsync/pkg/feed"
	"nestsync/pkg/limiter"
	"nestsync/pkg/logger"
	"nestsync/pkg/ratelimit"
	"nestsync/pkg/sproutbook"
	"nestsync/pkg/stamp"
	"nestsync/pkg/storage"
	"nestsync/pkg/watermark"
)

// Syncer orchestrates sync runs. Enrollments are processed sequentially
// and pagination within an enrollment is sequential; only the download
// stage fans out, through the bounded worker pool.
type Syncer struct {
	client       Client
	store        *storage.Manager
	watermarks   *watermark.Store
	stamper      downloader.Stamper
	feedLimiter  ratelimit.Limiter
	mediaLimiter ratelimit.Limiter
	config       *config.Config
	logger       logger.Logger
	progress     Progress
	filter       []string
	dryRun       bool
}

// New wires a syncer from configuration. stamper may be nil when
// stamping is disabled or exiftool is unavailable; delivery then happens
// without embedded tags.
func New(cfg *config.Config, client Client, stamper downloader.Stamper) (*Syncer, error) {
	log := logger.GetLogger()

	store, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	watermarks, err := watermark.NewStore(cfg.Sync.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare watermark store: %w", err)
	}

	rpm := cfg.RateLimit.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = rpm
	}

	return &Syncer{
		client:       client,
		store:        store,
		watermarks:   watermarks,
		stamper:      stamper,
		feedLimiter:  ratelimit.PerMinute(rpm),
		mediaLimiter: ratelimit.NewTokenBucket(burst, time.Minute),
		config:       cfg,
		logger:       log,
	}, nil
}

// SetDryRun makes Run report what it would download without touching the
// network for media or advancing watermarks.
func (s *Syncer) SetDryRun(dryRun bool) {
	s.dryRun = dryRun
}

// SetProgress attaches a live display. nil disables rendering.
func (s *Syncer) SetProgress(p Progress) {
	s.progress = p
}

// SetFilter restricts Run to enrollments whose display name or id matches
// one of names. Names compare case-insensitively; empty means all.
func (s *Syncer) SetFilter(names []string) {
	s.filter = names
}

func (s *Syncer) selected(e *sproutbook.Enrollment) bool {
	if len(s.filter) == 0 {
		return true
	}
	for _, want := range s.filter {
		if strings.EqualFold(want, e.Name()) || want == e.Identity() {
			return true
		}
	}
	return false
}

// Run syncs every enrollment under the configured account. The returned
// error covers run-level failures only; per-enrollment outcomes live in
// the report, and a fatal error in one enrollment does not stop the
// others.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	accountID := s.config.Service.AccountID
	if strings.TrimSpace(accountID) == "" {
		return nil, errs.New(errs.ErrorTypeConfig, "no account id configured, run auth login or set NESTSYNC_ACCOUNT_ID")
	}

	report := &Report{StartedAt: time.Now(), DryRun: s.dryRun}

	enrollments, err := s.client.FetchEnrollments(accountID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list enrollments")
		return nil, err
	}
	s.logger.InfoWithFields("Starting sync run", map[string]interface{}{
		"account_id":  accountID,
		"enrollments": len(enrollments),
		"dry_run":     s.dryRun,
	})

	state, err := s.watermarks.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load watermark state: %w", err)
	}

	for i := range enrollments {
		e := &enrollments[i]
		if e.Identity() == "" {
			s.logger.WarnWithFields("Enrollment has no usable identifier, skipping", map[string]interface{}{
				"name": e.Name(),
			})
			report.Enrollments = append(report.Enrollments, EnrollmentReport{
				Name:       e.Name(),
				Skipped:    true,
				SkipReason: "missing identity",
			})
			report.Skipped++
			continue
		}
		if !s.selected(e) {
			report.Enrollments = append(report.Enrollments, EnrollmentReport{
				EnrollmentID: e.Identity(),
				Name:         e.Name(),
				Skipped:      true,
				SkipReason:   "not selected",
			})
			report.Skipped++
			continue
		}

		er := s.syncEnrollment(ctx, e, state)
		report.Enrollments = append(report.Enrollments, er)
		if er.Err != nil {
			report.Failed++
		} else {
			report.Synced++
		}
	}

	report.FinishedAt = time.Now()
	s.logger.InfoWithFields("Sync run finished", map[string]interface{}{
		"synced":     report.Synced,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
		"downloaded": report.TotalDownloaded(),
		"duration":   report.FinishedAt.Sub(report.StartedAt).String(),
	})
	return report, nil
}

// syncEnrollment walks one enrollment's feed, selects assets under the
// cap, downloads and stamps them, and advances the watermark. A fatal
// feed error aborts this enrollment only and leaves its watermark
// untouched.
func (s *Syncer) syncEnrollment(ctx context.Context, e *sproutbook.Enrollment, state *watermark.State) EnrollmentReport {
	id := e.Identity()
	zone := sproutbook.EnrollmentZone(e, s.config.Sync.Timezone)
	er := EnrollmentReport{EnrollmentID: id, Name: e.Name()}

	es := state.Enrollment(id)
	if es.Name == "" {
		es.Name = e.Name()
	}

	// An explicit configured start wins over the persisted resume point.
	var start time.Time
	resumed := false
	if cfgStart, ok := s.config.Sync.StartTime(zone); ok {
		start = cfgStart
	} else if resume, ok := watermark.ResumeAfter(es); ok {
		start = resume
		resumed = true
	}
	end, _ := s.config.Sync.EndTime(zone)

	s.logger.InfoWithFields("Starting enrollment sync", map[string]interface{}{
		"enrollment_id": id,
		"name":          e.Name(),
		"zone":          zone.String(),
		"resumed":       resumed,
		"start":         formatInstant(start),
		"asset_cap":     s.config.Sync.AssetCap,
	})

	if s.progress != nil {
		s.progress.EnrollmentStarted(e.Name(), resumed)
	}

	tracker := watermark.NewTracker(es.Watermark)
	monitor := limiter.NewMonitor(s.config.Sync.AssetCap)
	assetCap := s.config.Sync.AssetCap

	var accumulated []sproutbook.Note
	pager := feed.NewPager(s.client, s.feedLimiter, feed.Options{
		EnrollmentID:  id,
		Zone:          zone,
		Start:         start,
		End:           end,
		PageSize:      s.config.Sync.PageSize,
		MaxPages:      s.config.Sync.MaxPages,
		PageDelay:     time.Duration(s.config.Sync.PageDelay),
		Categories:    s.config.Service.Categories,
		RetryAttempts: s.config.Sync.RetryAttempts,
		RetryDelay:    time.Duration(s.config.Sync.RetryDelay),
	}, s.logger)

	reason, err := pager.Walk(ctx, func(pg feed.Page) bool {
		er.Pages = pg.Number
		er.NotesSeen += len(pg.Notes)
		for i := range pg.Notes {
			if tracker.Observe(pg.Notes[i].Identity()) {
				accumulated = append(accumulated, pg.Notes[i])
			}
		}
		if s.progress != nil {
			s.progress.PageScanned(pg.Number, len(pg.Notes))
		}
		if assetCap <= 0 {
			return true
		}

		// Recompute the selection over everything seen so far; once the
		// boundary is stable and the page floor has moved past it, older
		// pages cannot join the selection.
		res := limiter.Apply(accumulated, assetCap, zone)
		if monitor.Observe(res, pg.Oldest.Time, pg.OldestOK) {
			s.logger.InfoWithFields("Asset cap boundary stable, stopping pagination early", map[string]interface{}{
				"enrollment_id": id,
				"cutoff":        res.Cutoff.Format(time.RFC3339),
				"selected":      res.SelectedAssets,
				"total":         res.TotalAssets,
			})
			return false
		}
		return true
	})
	er.StopReason = reason
	er.NotesNew = len(accumulated)
	if err != nil {
		er.Err = err
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"enrollment_id": id,
			"pages":         er.Pages,
		}).Error("Enrollment sync aborted")
		return er
	}

	notes := accumulated
	var cutoff time.Time
	if assetCap > 0 {
		res := limiter.Apply(accumulated, assetCap, zone)
		notes = res.Notes
		er.AssetsTotal = res.TotalAssets
		er.AssetsSelected = res.SelectedAssets
		er.Limited = res.Limited
		cutoff = res.LatestRetained
		if res.Limited {
			s.logger.InfoWithFields("Asset cap applied", map[string]interface{}{
				"enrollment_id": id,
				"selected":      res.SelectedAssets,
				"total":         res.TotalAssets,
				"cutoff":        res.Cutoff.Format(time.RFC3339),
			})
		}
	} else {
		total := 0
		for i := range notes {
			total += len(notes[i].Media)
		}
		er.AssetsTotal = total
		er.AssetsSelected = total
	}
	er.NotesSynced = len(notes)

	jobs := s.buildJobs(e, notes, zone, &er)

	if s.dryRun {
		s.logger.InfoWithFields("Dry run, skipping downloads", map[string]interface{}{
			"enrollment_id": id,
			"notes":         len(notes),
			"assets":        len(jobs),
		})
		return er
	}

	if s.progress != nil {
		s.progress.DownloadsQueued(len(jobs))
	}
	s.runPool(jobs, &er)

	// The watermark follows what was actually retained: the cap boundary
	// when truncation occurred, else the newest resolved instant seen.
	if er.Limited {
		tracker.Advance(cutoff)
	} else if latest, ok := sproutbook.LatestNoteTime(accumulated, zone); ok {
		tracker.Advance(latest)
	}
	if wm, advanced := tracker.Watermark(); advanced {
		es.Watermark = wm
		er.Watermark = wm
		er.Advanced = true
	} else {
		er.Watermark = es.Watermark
	}
	es.LastSync = time.Now()
	es.NotesSynced += er.NotesSynced
	es.AssetsDownloaded += er.Downloaded

	if err := s.watermarks.Save(state); err != nil {
		// Next run re-walks from the old watermark; on-disk dedup makes
		// that harmless.
		s.logger.WithError(err).Warn("Failed to persist watermark state")
	}

	if s.progress != nil {
		s.progress.EnrollmentFinished(e.Name(), er.Downloaded, er.FailedAssets)
	}
	s.logger.InfoWithFields("Enrollment sync completed", map[string]interface{}{
		"enrollment_id": id,
		"pages":         er.Pages,
		"notes":         er.NotesSynced,
		"downloaded":    er.Downloaded,
		"skipped":       er.SkippedAssets,
		"failed":        er.FailedAssets,
		"stop_reason":   reason.String(),
		"watermark":     formatInstant(er.Watermark),
	})
	return er
}

// buildJobs flattens the selected notes into download jobs, skipping
// classes the configuration excludes and assets with no usable location.
func (s *Syncer) buildJobs(e *sproutbook.Enrollment, notes []sproutbook.Note, zone *time.Location, er *EnrollmentReport) []downloader.Job {
	dir := s.enrollmentDir(e)
	jobs := make([]downloader.Job, 0, er.AssetsSelected)

	for ni := range notes {
		note := &notes[ni]
		for ai := range note.Media {
			asset := &note.Media[ai]

			assetURL := asset.DownloadURL(s.client.BaseURL())
			if assetURL == "" {
				er.FailedAssets++
				s.logger.WarnWithFields("Asset has no downloadable location, skipping", map[string]interface{}{
					"enrollment_id": er.EnrollmentID,
					"note":          note.Identity(),
				})
				continue
			}

			ext := asset.FileExt()
			class := stamp.Classify(asset.MimeType, assetURL)
			if class == stamp.ClassUnknown {
				class = stamp.Classify("", ext)
			}
			if class == stamp.ClassVideo && s.config.Download.SkipVideos {
				continue
			}
			if class != stamp.ClassVideo && class != stamp.ClassUnknown && s.config.Download.SkipImages {
				continue
			}

			resolved, ok := sproutbook.ResolveAssetTime(asset, note, zone)
			var plan *stamp.Plan
			if s.stamper != nil && ok {
				p := stamp.BuildPlan(class, resolved.Time, zone, note.Comment)
				plan = &p
			}

			jobs = append(jobs, downloader.Job{
				URL:          assetURL,
				RelPath:      path.Join(dir, assetFilename(note, ai, resolved.Time, ok, zone, ext)),
				EnrollmentID: er.EnrollmentID,
				NoteIdentity: note.Identity(),
				Plan:         plan,
			})
		}
	}
	return jobs
}

// runPool drives the bounded download pool over the jobs and folds the
// results into the report.
func (s *Syncer) runPool(jobs []downloader.Job, er *EnrollmentReport) {
	if len(jobs) == 0 {
		return
	}

	pool := downloader.NewPool(
		s.config.Download.ConcurrentDownloads,
		s.client,
		s.store,
		s.stamper,
		s.mediaLimiter,
		s.logger,
	)
	pool.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			switch {
			case result.Skipped:
				er.SkippedAssets++
				if s.progress != nil {
					s.progress.AssetSkipped(result.Job.RelPath)
				}
			case result.Success:
				er.Downloaded++
				if s.progress != nil {
					s.progress.AssetCompleted(result.Job.RelPath, result.Size)
				}
			default:
				er.FailedAssets++
				if s.progress != nil {
					s.progress.AssetFailed(result.Job.RelPath, result.Error)
				}
			}
			if result.Stamped {
				er.Stamped++
			}
		}
	}()

	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"path": job.RelPath,
			}).Error("Failed to submit download job")
			er.FailedAssets++
		}
	}

	pool.Stop()
	wg.Wait()
}

// enrollmentDir returns the per-enrollment folder name, empty for a flat
// layout.
func (s *Syncer) enrollmentDir(e *sproutbook.Enrollment) string {
	if !s.config.Output.CreateChildFolders {
		return ""
	}
	return sanitizeName(e.Name())
}

// assetFilename builds a stable name so re-runs address the same file:
// <date>_<note>_<seq>.<ext>. Unresolvable instants date as "undated".
func assetFilename(note *sproutbook.Note, assetIdx int, instant time.Time, resolved bool, zone *time.Location, ext string) string {
	date := "undated"
	if resolved {
		date = instant.In(zone).Format("2006-01-02")
	}
	return fmt.Sprintf("%s_%s_%02d%s", date, shortIdentity(note.Identity()), assetIdx+1, ext)
}

// shortIdentity compresses fingerprint identities to a filename-friendly
// prefix; id-based identities are sanitized as-is.
func shortIdentity(id string) string {
	if strings.HasPrefix(id, "fp:") && len(id) >= 15 {
		return id[3:15]
	}
	return sanitizeName(id)
}

// sanitizeName maps arbitrary vendor strings onto a safe filename set.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "enrollment"
	}
	return out
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.RFC3339)
}
