package filehandler

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata holds the EXIF fields the storybook cares about.
//
// evanoberholster/imagemeta reads only the metadata blocks (tens of KB) of
// JPEG, HEIC, TIFF and similar containers, so decoding is cheap even for
// large originals.
type ImageMetadata struct {
	Latitude  float64
	Longitude float64
	HasGPS    bool

	DateTaken time.Time
	HasDate   bool

	CameraMake  string
	CameraModel string
}

// ExtractImageMetadata reads EXIF metadata from a file on disk.
func ExtractImageMetadata(filePath string) (*ImageMetadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return DecodeImageMetadata(file)
}

// DecodeImageMetadata reads EXIF metadata from an in-memory or on-disk photo.
// Date falls back from DateTimeOriginal to CreateDate to ModifyDate.
func DecodeImageMetadata(r io.ReadSeeker) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		metadata.Latitude = gps.Latitude()
		metadata.Longitude = gps.Longitude()
		metadata.HasGPS = true
	}

	for _, t := range []time.Time{exifData.DateTimeOriginal(), exifData.CreateDate(), exifData.ModifyDate()} {
		if !t.IsZero() {
			metadata.DateTaken = t
			metadata.HasDate = true
			break
		}
	}

	metadata.CameraMake = strings.TrimSpace(exifData.Make)
	metadata.CameraModel = strings.TrimSpace(exifData.Model)

	log.Trace().
		Bool("has_gps", metadata.HasGPS).
		Bool("has_date", metadata.HasDate).
		Str("camera", metadata.Camera()).
		Msg("Image metadata decoded")

	return metadata, nil
}

// Camera returns "Make Model" with duplicated make prefixes collapsed
// (Apple reports Make "Apple", Model "iPhone 15"; Canon repeats "Canon").
func (m *ImageMetadata) Camera() string {
	if m == nil {
		return ""
	}
	if m.CameraMake != "" && strings.HasPrefix(m.CameraModel, m.CameraMake) {
		return m.CameraModel
	}
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// FormatMetadataContext formats the metadata as a short text block for
// inclusion in a model prompt.
func (m *ImageMetadata) FormatMetadataContext() string {
	var sb strings.Builder

	if m.HasDate {
		fmt.Fprintf(&sb, "Taken: %s at %s\n", m.DateTaken.Format("Monday, January 2, 2006"), m.DateTaken.Format("3:04 PM"))
	} else {
		sb.WriteString("Taken: unknown\n")
	}

	if m.HasGPS {
		fmt.Fprintf(&sb, "Location: %.6f, %.6f (%s)\n", m.Latitude, m.Longitude, CoordinatesToDMS(m.Latitude, m.Longitude))
	} else {
		sb.WriteString("Location: not available\n")
	}

	if camera := m.Camera(); camera != "" {
		fmt.Fprintf(&sb, "Camera: %s\n", camera)
	}

	return sb.String()
}
