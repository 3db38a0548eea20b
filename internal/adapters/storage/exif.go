package storage

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// PhotoMetadata holds the EXIF fields worth logging for a yard photo.
type PhotoMetadata struct {
	CameraMake  string
	CameraModel string
	TakenAt     string
	Latitude    float64
	Longitude   float64
	HasGPS      bool
}

// ExtractMetadata parses EXIF data out of an image payload. Returns nil when
// the image carries no EXIF block; phone screenshots and processed images
// usually don't.
func ExtractMetadata(data []byte) *PhotoMetadata {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	meta := &PhotoMetadata{}

	if tag, err := x.Get(exif.Make); err == nil {
		meta.CameraMake, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.Model); err == nil {
		meta.CameraModel, _ = tag.StringVal()
	}
	if t, err := x.DateTime(); err == nil {
		meta.TakenAt = t.Format("2006-01-02T15:04:05Z07:00")
	}
	if lat, long, err := x.LatLong(); err == nil {
		meta.Latitude = lat
		meta.Longitude = long
		meta.HasGPS = true
	}

	if meta.CameraMake == "" && meta.CameraModel == "" && meta.TakenAt == "" && !meta.HasGPS {
		return nil
	}
	return meta
}
