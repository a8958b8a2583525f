package syncer

import (
	"io"

	"nestsync/pkg/sproutbook"
)

// Client is the vendor API surface the syncer drives. *sproutbook.Client
// satisfies it; tests substitute a scripted fake.
type Client interface {
	FetchEnrollments(accountID string) ([]sproutbook.Enrollment, error)
	FetchNotesPage(enrollmentID, before string, count int, categories []string) ([]sproutbook.Note, error)
	DownloadAsset(assetURL string) (io.ReadCloser, int64, error)
	BaseURL() string
}

// Progress receives live sync milestones for terminal rendering.
// *ui.SyncDisplay satisfies it. The asset callbacks arrive concurrently
// from pool workers; implementations must be safe for concurrent use.
type Progress interface {
	EnrollmentStarted(name string, resumed bool)
	PageScanned(page, notes int)
	DownloadsQueued(total int)
	AssetCompleted(name string, size int64)
	AssetSkipped(name string)
	AssetFailed(name string, err error)
	EnrollmentFinished(name string, downloaded, failed int)
}
