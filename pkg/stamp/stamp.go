// Package stamp turns a resolved capture instant and caption into file
// metadata: embedded tags written through exiftool, JSON sidecars for
// formats that cannot hold tags, and mtime updates as a last resort.
package stamp

import (
	"path/filepath"
	"strings"
	"time"
)

// Classification selects which tag plan an asset receives.
type Classification int

const (
	ClassUnknown Classification = iota
	ClassVideo
	ClassRichRaster
	ClassLimitedRaster
)

func (c Classification) String() string {
	switch c {
	case ClassVideo:
		return "video"
	case ClassRichRaster:
		return "rich-raster"
	case ClassLimitedRaster:
		return "limited-raster"
	default:
		return "unknown"
	}
}

// Exiftool's date-time encoding, and the ISO-8601 form XMP tags take.
const (
	exifLayout = "2006:01:02 15:04:05"
	isoLayout  = "2006-01-02T15:04:05-07:00"
)

// Classify picks a classification from the asset's MIME hint, falling back
// to the file extension when the hint is absent or unrecognized.
func Classify(mimeType, filename string) Classification {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if strings.HasPrefix(mt, "video/") {
		return ClassVideo
	}
	if strings.HasPrefix(mt, "image/") {
		switch strings.TrimPrefix(mt, "image/") {
		case "jpeg", "jpg", "tiff", "heic", "heif":
			return ClassRichRaster
		case "png", "gif", "bmp", "webp":
			return ClassLimitedRaster
		}
	}

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "mp4", "mov", "m4v":
		return ClassVideo
	case "jpg", "jpeg", "tif", "tiff", "heic":
		return ClassRichRaster
	case "png", "gif", "bmp", "webp":
		return ClassLimitedRaster
	}
	return ClassUnknown
}

// Plan is the concrete stamping work for one downloaded file.
type Plan struct {
	// Class records which branch of the policy produced the plan.
	Class Classification

	// Tags are embedded via the Tagger. Empty means no embedded write.
	Tags map[string]string

	// Sidecar, when non-nil, is written next to the file.
	Sidecar *Sidecar

	// Touch sets the file's modification time to Instant.
	Touch bool

	// Instant is the capture instant localized to the target zone.
	Instant time.Time
}

// BuildPlan selects the tag set for one asset. The instant is localized to
// loc before encoding; nil loc means UTC. The dispatch is a fixed lookup,
// one classification per asset.
func BuildPlan(class Classification, t time.Time, loc *time.Location, caption string) Plan {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	iso := local.Format(isoLayout)

	plan := Plan{Class: class, Instant: local}
	switch class {
	case ClassVideo:
		// QuickTime dates are conventionally UTC.
		utc := t.UTC().Format(exifLayout)
		plan.Tags = map[string]string{
			"QuickTime:CreateDate": utc,
			"QuickTime:ModifyDate": utc,
			"XMP-dc:Date":          iso,
		}
	case ClassRichRaster:
		enc := local.Format(exifLayout)
		plan.Tags = map[string]string{
			"EXIF:DateTimeOriginal":     enc,
			"EXIF:CreateDate":           enc,
			"XMP-photoshop:DateCreated": iso,
			"XMP-dc:Date":               iso,
		}
		if caption != "" {
			plan.Tags["EXIF:ImageDescription"] = caption
		}
	case ClassLimitedRaster:
		plan.Tags = map[string]string{"XMP-dc:Date": iso}
	default:
		plan.Touch = true
	}
	if caption != "" && plan.Tags != nil {
		plan.Tags["XMP-dc:Description"] = caption
	}

	// Formats that cannot reliably hold the tags also get a sidecar with
	// the same content; unknown formats get only the sidecar.
	if class == ClassLimitedRaster || class == ClassUnknown {
		side := map[string]string{"XMP-dc:Date": iso}
		if caption != "" {
			side["XMP-dc:Description"] = caption
		}
		plan.Sidecar = &Sidecar{
			CapturedAt: iso,
			Zone:       loc.String(),
			Caption:    caption,
			Tags:       side,
		}
	}
	return plan
}
