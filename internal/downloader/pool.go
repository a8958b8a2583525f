package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	errs "nestsync/pkg/errors"
	"nestsync/pkg/logger"
	"nestsync/pkg/ratelimit"
	"nestsync/pkg/stamp"
)

// Job is one asset to download and stamp.
type Job struct {
	// URL is the absolute media location.
	URL string

	// RelPath is the destination under the output root, typically
	// <enrollment>/<filename>.
	RelPath string

	// EnrollmentID and NoteIdentity contextualize log lines and reports.
	EnrollmentID string
	NoteIdentity string

	// Plan, when non-nil, is applied to the file after a successful save.
	Plan *stamp.Plan
}

// Result reports one processed job. Success means the bytes are on disk,
// whether from this run or an earlier one; a stamping failure leaves
// Success true with Error describing what went wrong.
type Result struct {
	Job      Job
	Success  bool
	Skipped  bool
	Stamped  bool
	Error    error
	Size     int64
	Duration time.Duration
}

// MediaFetcher streams one asset body. *sproutbook.Client satisfies it.
type MediaFetcher interface {
	DownloadAsset(url string) (io.ReadCloser, int64, error)
}

// MediaStore persists streamed assets. *storage.Manager satisfies it.
type MediaStore interface {
	Has(relPath string) bool
	Save(r io.Reader, relPath string) (int64, error)
	Path(relPath string) string
}

// Stamper applies a metadata plan to a stored file. *stamp.Stamper
// satisfies it.
type Stamper interface {
	Apply(path string, plan stamp.Plan) error
}

// WorkerPool downloads and stamps assets concurrently. Pagination is
// sequential upstream; this is the only fan-out in a run, bounded so the
// media host never sees unbounded concurrency.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     MediaFetcher
	store       MediaStore
	stamper     Stamper
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewPool creates a download worker pool. stamper may be nil when
// stamping is disabled; rateLimiter may be nil to disable pacing.
func NewPool(
	numWorkers int,
	fetcher MediaFetcher,
	store MediaStore,
	stamper Stamper,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		store:       store,
		stamper:     stamper,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting download pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, drains in-flight jobs, and closes the result
// channel.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Download pool stopped")
}

// Submit queues one job. It fails only when the pool is shutting down.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("download pool is shutting down")
	}
}

// Results returns the channel results are delivered on. It is closed by
// Stop after the last in-flight job completes.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob downloads, saves, and stamps one asset. Failures are
// isolated: the result carries the error and siblings keep going.
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if wp.store.Has(job.RelPath) {
		wp.logger.DebugWithFields("Asset already on disk", map[string]interface{}{
			"worker_id": workerID,
			"path":      job.RelPath,
		})
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if wp.rateLimiter != nil && !wp.rateLimiter.Allow() {
		wp.rateLimiter.Wait()
	}

	body, _, err := wp.fetcher.DownloadAsset(job.URL)
	if err != nil {
		result.Error = errs.Wrap(errs.ErrorTypeAssetFetch, "download failed", err)
		result.Duration = time.Since(start)

		wp.logger.WarnWithFields("Asset download failed, skipping", map[string]interface{}{
			"worker_id":     workerID,
			"enrollment_id": job.EnrollmentID,
			"note":          job.NoteIdentity,
			"url":           job.URL,
			"error":         err.Error(),
		})
		return result
	}

	written, err := wp.store.Save(body, job.RelPath)
	body.Close()
	if err != nil {
		result.Error = errs.Wrap(errs.ErrorTypeStorage, "save failed", err)
		result.Duration = time.Since(start)

		wp.logger.WarnWithFields("Asset save failed, skipping", map[string]interface{}{
			"worker_id": workerID,
			"path":      job.RelPath,
			"error":     err.Error(),
		})
		return result
	}

	result.Success = true
	result.Size = written

	if job.Plan != nil && wp.stamper != nil {
		if err := wp.stamper.Apply(wp.store.Path(job.RelPath), *job.Plan); err != nil {
			// The bytes are delivered; only the metadata write failed.
			result.Error = err
			wp.logger.WarnWithFields("Stamping failed, file kept without tags", map[string]interface{}{
				"worker_id": workerID,
				"path":      job.RelPath,
				"error":     err.Error(),
			})
		} else {
			result.Stamped = true
		}
	}

	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("Asset delivered", map[string]interface{}{
		"worker_id": workerID,
		"path":      job.RelPath,
		"size":      written,
		"stamped":   result.Stamped,
		"duration":  result.Duration,
	})

	return result
}

// QueueSize returns the number of jobs waiting in the queue.
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

// Workers returns the configured worker count.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}
