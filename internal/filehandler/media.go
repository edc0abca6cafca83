// Package filehandler reads photos from disk or memory: type detection by
// extension or content type, EXIF metadata via evanoberholster/imagemeta,
// directory scanning, and thumbnail generation.
package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions maps accepted photo extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// extForContentType is the reverse mapping used when an upload has no usable
// extension. image/jpeg maps to the canonical ".jpg".
var extForContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// MediaFile is a photo on local disk.
type MediaFile struct {
	Path     string
	MIMEType string
	Size     int64
	ModTime  time.Time
	Metadata *ImageMetadata
}

// Name returns the file's base name.
func (m *MediaFile) Name() string {
	return filepath.Base(m.Path)
}

// TakenAt returns the EXIF capture time when known, otherwise the file's
// modification time.
func (m *MediaFile) TakenAt() time.Time {
	if m.Metadata != nil && m.Metadata.HasDate {
		return m.Metadata.DateTaken
	}
	return m.ModTime
}

// LoadMediaFile stats a photo and extracts its EXIF metadata. Metadata
// failures are logged and tolerated; the file is still returned.
func LoadMediaFile(filePath string) (*MediaFile, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	mimeType, err := GetMIMEType(filepath.Ext(filePath))
	if err != nil {
		return nil, err
	}

	mf := &MediaFile{
		Path:     filePath,
		MIMEType: mimeType,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}

	meta, err := ExtractImageMetadata(filePath)
	if err != nil {
		log.Debug().Err(err).Str("path", filePath).Msg("No EXIF metadata, continuing without it")
	} else {
		mf.Metadata = meta
	}

	log.Debug().
		Str("path", filePath).
		Str("mime_type", mimeType).
		Int64("size_bytes", mf.Size).
		Bool("has_exif", mf.Metadata != nil).
		Msg("Photo loaded")

	return mf, nil
}

// GetMIMEType returns the MIME type for a photo extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedImageExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage returns true if the extension is a supported photo type.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsImageContentType reports whether a Content-Type header names a supported
// photo type. Parameters such as "; charset" are ignored.
func IsImageContentType(contentType string) bool {
	_, ok := extForContentType[normalizeContentType(contentType)]
	return ok
}

// ExtForContentType returns the canonical extension for a supported content type.
func ExtForContentType(contentType string) (string, bool) {
	ext, ok := extForContentType[normalizeContentType(contentType)]
	return ext, ok
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// CoordinatesToDMS converts decimal degrees to degrees, minutes, seconds format.
func CoordinatesToDMS(lat, lon float64) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
		lat = -lat
	}
	lonDir := "E"
	if lon < 0 {
		lonDir = "W"
		lon = -lon
	}

	dms := func(v float64) (int, int, float64) {
		deg := int(v)
		minutes := (v - float64(deg)) * 60
		return deg, int(minutes), (minutes - float64(int(minutes))) * 60
	}
	latDeg, latMin, latSec := dms(lat)
	lonDeg, lonMin, lonSec := dms(lon)

	return fmt.Sprintf("%d°%d'%.2f\"%s, %d°%d'%.2f\"%s",
		latDeg, latMin, latSec, latDir,
		lonDeg, lonMin, lonSec, lonDir)
}
