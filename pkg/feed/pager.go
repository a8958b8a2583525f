// Package feed walks a Sproutbook notes feed backward in time. The feed
// only supports an exclusive upper-bound cursor, so each page's cursor is
// derived from the previous page's oldest resolvable instant.
package feed

import (
	"context"
	"time"

	"nestsync/pkg/logger"
	"nestsync/pkg/ratelimit"
	"nestsync/pkg/retry"
	"nestsync/pkg/sproutbook"
	"nestsync/pkg/timestamp"
)

// PageFetcher fetches one raw page of notes. *sproutbook.Client satisfies
// it; tests substitute a scripted fake.
type PageFetcher interface {
	FetchNotesPage(enrollmentID, before string, count int, categories []string) ([]sproutbook.Note, error)
}

// Options configure a walk over one enrollment's feed.
type Options struct {
	// EnrollmentID is the feed identifier of the enrollment to walk.
	EnrollmentID string

	// Zone anchors civil-local timestamps and renders civil-local cursors.
	// Nil means UTC.
	Zone *time.Location

	// Start is the inclusive lower bound of the sync window. Notes older
	// than Start are filtered out, and the walk stops once the next cursor
	// could no longer reach it. Zero means all history.
	Start time.Time

	// End is the inclusive upper bound. Zero means now.
	End time.Time

	// PageSize is the per-request note count.
	PageSize int

	// MaxPages caps the number of pages fetched. Zero means unlimited.
	MaxPages int

	// PageDelay is the pause between consecutive page fetches.
	PageDelay time.Duration

	// Categories filters the feed server-side. Empty means all categories.
	Categories []string

	// RetryAttempts bounds retries of a transient page-fetch failure.
	RetryAttempts int

	// RetryDelay seeds the exponential backoff between retries.
	RetryDelay time.Duration
}

// Page is one fetched page handed to the walk callback.
type Page struct {
	// Number is the 1-based page ordinal within this walk.
	Number int

	// Notes holds the page's records filtered to the sync window,
	// in the order the feed returned them.
	Notes []sproutbook.Note

	// Oldest is the oldest resolvable instant on the raw page, before
	// window filtering. Valid only when OldestOK is true.
	Oldest timestamp.Resolved

	// OldestOK reports whether any record on the raw page resolved.
	OldestOK bool
}

// StopReason explains why a walk ended without error.
type StopReason int

const (
	// StopExhausted means the feed returned an empty page.
	StopExhausted StopReason = iota
	// StopStalled means the cursor failed to advance even after stepping
	// back one extra quantum.
	StopStalled
	// StopUnresolvable means a page carried no resolvable instant to
	// derive the next cursor from.
	StopUnresolvable
	// StopPageBudget means MaxPages was reached.
	StopPageBudget
	// StopStartReached means the next cursor could not move past the
	// start of the sync window.
	StopStartReached
	// StopRequested means the page callback ended the walk.
	StopRequested
	// StopFailed means a page fetch failed fatally.
	StopFailed
)

func (r StopReason) String() string {
	switch r {
	case StopExhausted:
		return "exhausted"
	case StopStalled:
		return "stalled"
	case StopUnresolvable:
		return "unresolvable-page"
	case StopPageBudget:
		return "page-budget"
	case StopStartReached:
		return "start-reached"
	case StopRequested:
		return "requested"
	case StopFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pager drives backward pagination for a single enrollment. Pages are
// inherently sequential: each cursor depends on the previous page's
// content, so one Pager never fetches concurrently.
type Pager struct {
	fetcher PageFetcher
	limiter ratelimit.Limiter
	logger  logger.Logger
	opts    Options
}

// NewPager creates a pager over fetcher. limiter may be nil to disable
// request pacing (tests); log may be nil for the process logger.
func NewPager(fetcher PageFetcher, limiter ratelimit.Limiter, opts Options, log logger.Logger) *Pager {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	return &Pager{
		fetcher: fetcher,
		limiter: limiter,
		logger:  log,
		opts:    opts,
	}
}

// Walk pages backward through the feed, invoking fn once per non-empty
// page until a termination condition triggers. fn returning false stops
// the walk. The returned reason explains which condition ended it; the
// error is non-nil only for StopFailed or context cancellation.
func (p *Pager) Walk(ctx context.Context, fn func(Page) bool) (StopReason, error) {
	zone := p.opts.Zone
	if zone == nil {
		zone = time.UTC
	}
	end := p.opts.End
	if end.IsZero() {
		end = time.Now()
	}

	// The first cursor is local midnight of the day after the window end,
	// so the final day is never truncated by a same-day boundary.
	cursor := timestamp.InitialCursor(end, zone)
	before := timestamp.FormatCursor(cursor, zone)

	p.logger.DebugWithFields("Starting feed walk", map[string]interface{}{
		"enrollment_id":  p.opts.EnrollmentID,
		"initial_cursor": before,
		"zone":           zone.String(),
		"page_size":      p.opts.PageSize,
	})

	pageNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return StopFailed, err
		}
		if p.opts.MaxPages > 0 && pageNum >= p.opts.MaxPages {
			p.logger.InfoWithFields("Page budget exhausted", map[string]interface{}{
				"enrollment_id": p.opts.EnrollmentID,
				"pages_fetched": pageNum,
			})
			return StopPageBudget, nil
		}

		if p.limiter != nil {
			p.limiter.Wait()
		}

		notes, err := p.fetchPage(ctx, before)
		if err != nil {
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"enrollment_id": p.opts.EnrollmentID,
				"cursor":        before,
				"page":          pageNum + 1,
			}).Error("Page fetch failed")
			return StopFailed, err
		}
		pageNum++

		if len(notes) == 0 {
			p.logger.DebugWithFields("Feed exhausted", map[string]interface{}{
				"enrollment_id": p.opts.EnrollmentID,
				"pages_fetched": pageNum,
			})
			return StopExhausted, nil
		}

		oldest, oldestOK := sproutbook.OldestNoteTime(notes, zone)

		page := Page{
			Number:   pageNum,
			Notes:    filterWindow(notes, zone, p.opts.Start, end),
			Oldest:   oldest,
			OldestOK: oldestOK,
		}
		p.logger.DebugWithFields("Page fetched", map[string]interface{}{
			"enrollment_id": p.opts.EnrollmentID,
			"page":          pageNum,
			"notes":         len(notes),
			"in_window":     len(page.Notes),
			"cursor":        before,
		})
		if !fn(page) {
			return StopRequested, nil
		}

		if !oldestOK {
			p.logger.WarnWithFields("Page has no resolvable timestamps, cannot derive next cursor", map[string]interface{}{
				"enrollment_id": p.opts.EnrollmentID,
				"page":          pageNum,
				"notes":         len(notes),
			})
			return StopUnresolvable, nil
		}

		// The next cursor excludes the boundary record: one quantum before
		// the page's oldest instant, rendered in the basis convention that
		// instant carried.
		nextZone := zone
		if oldest.Basis == timestamp.Absolute {
			nextZone = time.UTC
		}
		next := timestamp.StepBack(oldest.Time)
		nextStr := timestamp.FormatCursor(next, nextZone)
		if !advances(next, nextStr, cursor, before) {
			next = timestamp.StepBack(next)
			nextStr = timestamp.FormatCursor(next, nextZone)
			if !advances(next, nextStr, cursor, before) {
				p.logger.WarnWithFields("Cursor failed to advance, stopping", map[string]interface{}{
					"enrollment_id": p.opts.EnrollmentID,
					"cursor":        before,
					"candidate":     nextStr,
				})
				return StopStalled, nil
			}
		}

		if !p.opts.Start.IsZero() && !next.After(p.opts.Start) {
			p.logger.DebugWithFields("Reached start of sync window", map[string]interface{}{
				"enrollment_id": p.opts.EnrollmentID,
				"start":         p.opts.Start.Format(time.RFC3339),
				"next_cursor":   nextStr,
			})
			return StopStartReached, nil
		}

		cursor = next
		before = nextStr

		if p.opts.PageDelay > 0 {
			if err := retry.Wait(ctx, p.opts.PageDelay); err != nil {
				return StopFailed, err
			}
		}
	}
}

// fetchPage requests one page, retrying transient failures with capped
// exponential backoff. Any other failure is returned as-is and aborts the
// walk.
func (p *Pager) fetchPage(ctx context.Context, before string) ([]sproutbook.Note, error) {
	cfg := &retry.Config{
		MaxAttempts: p.opts.RetryAttempts,
		Backoff:     retry.FeedBackoff(p.opts.RetryDelay),
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      p.logger,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			p.logger.WarnWithFields("Retrying page fetch", map[string]interface{}{
				"enrollment_id": p.opts.EnrollmentID,
				"cursor":        before,
				"attempt":       attempt,
				"delay":         delay.String(),
				"error":         err.Error(),
			})
		},
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return retry.DoWithResult(func() ([]sproutbook.Note, error) {
		return p.fetcher.FetchNotesPage(p.opts.EnrollmentID, before, p.opts.PageSize, p.opts.Categories)
	}, cfg)
}

// advances reports whether a candidate cursor actually moves the walk
// backward: strictly earlier than the previous cursor instant and not
// normalizing to the same rendered value. Two distinct instants can render
// identically inside a DST fold, which is the loop this guards against.
func advances(next time.Time, nextStr string, cursor time.Time, before string) bool {
	return next.Before(cursor) && nextStr != before
}

// filterWindow drops notes outside [start, end]. Notes with no resolvable
// instant are kept: they cannot be placed in the window, and discarding
// them silently would lose data.
func filterWindow(notes []sproutbook.Note, loc *time.Location, start, end time.Time) []sproutbook.Note {
	kept := make([]sproutbook.Note, 0, len(notes))
	for i := range notes {
		r, ok := sproutbook.ResolveNoteTime(&notes[i], loc)
		if ok {
			if !start.IsZero() && r.Time.Before(start) {
				continue
			}
			if !end.IsZero() && r.Time.After(end) {
				continue
			}
		}
		kept = append(kept, notes[i])
	}
	return kept
}
