package stamp

import (
	"fmt"
	"os"
	"path/filepath"

	exiftool "github.com/barasher/go-exiftool"

	errs "nestsync/pkg/errors"
	"nestsync/pkg/logger"
)

// Tagger writes embedded metadata tags into a media file. The production
// implementation shells out to exiftool; tests substitute a recorder.
type Tagger interface {
	WriteTags(path string, tags map[string]string) error
	Close() error
}

// ExifTagger drives a long-lived exiftool process. Writes overwrite the
// file in place.
type ExifTagger struct {
	et *exiftool.Exiftool
}

// NewExifTagger starts the exiftool process. binary overrides the
// executable location; empty means whatever is on PATH. It fails when no
// exiftool can be started.
func NewExifTagger(binary string) (*ExifTagger, error) {
	var opts []func(*exiftool.Exiftool) error
	if binary != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binary))
	}

	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeMetadata, "starting exiftool", err)
	}
	return &ExifTagger{et: et}, nil
}

func (t *ExifTagger) WriteTags(path string, tags map[string]string) error {
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	for k, v := range tags {
		fm.SetString(k, v)
	}

	batch := []exiftool.FileMetadata{fm}
	t.et.WriteMetadata(batch)
	if batch[0].Err != nil {
		msg := fmt.Sprintf("writing tags to %s", filepath.Base(path))
		return errs.Wrap(errs.ErrorTypeMetadata, msg, batch[0].Err)
	}
	return nil
}

func (t *ExifTagger) Close() error {
	return t.et.Close()
}

// Stamper applies plans to downloaded files.
type Stamper struct {
	tagger Tagger
	logger logger.Logger
}

// NewStamper wraps a Tagger. log may be nil for the process logger.
func NewStamper(tagger Tagger, log logger.Logger) *Stamper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Stamper{tagger: tagger, logger: log}
}

// Apply performs the plan's writes against the file at path. The first
// failing step ends the attempt; callers treat stamping failures as
// isolated per asset.
func (s *Stamper) Apply(path string, plan Plan) error {
	if len(plan.Tags) > 0 && s.tagger != nil {
		if err := s.tagger.WriteTags(path, plan.Tags); err != nil {
			return err
		}
	}
	if plan.Sidecar != nil {
		if err := plan.Sidecar.Save(path); err != nil {
			return errs.Wrap(errs.ErrorTypeMetadata, "writing sidecar", err)
		}
	}
	if plan.Touch && !plan.Instant.IsZero() {
		if err := os.Chtimes(path, plan.Instant, plan.Instant); err != nil {
			return errs.Wrap(errs.ErrorTypeMetadata, "updating file mtime", err)
		}
	}

	s.logger.DebugWithFields("Stamped file", map[string]interface{}{
		"path":    filepath.Base(path),
		"class":   plan.Class.String(),
		"tags":    len(plan.Tags),
		"sidecar": plan.Sidecar != nil,
	})
	return nil
}
