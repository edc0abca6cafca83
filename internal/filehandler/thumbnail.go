package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultThumbnailMaxDimension is the maximum dimension (width or height) for
// card thumbnails.
const DefaultThumbnailMaxDimension = 400

// ThumbnailMIMEType is the content type of every generated thumbnail.
const ThumbnailMIMEType = "image/jpeg"

// ErrUnsupportedThumbnail is returned for formats the pure Go decoders cannot
// read (HEIC/HEIF). Callers serve the original instead.
var ErrUnsupportedThumbnail = errors.New("thumbnail not supported for this format")

const thumbnailQuality = 80

// GenerateThumbnail decodes a JPEG, PNG, GIF or WebP photo, scales it so its
// longest side is at most maxDimension, and encodes it as JPEG. Images that
// already fit are re-encoded without scaling.
func GenerateThumbnail(r io.Reader, maxDimension int) ([]byte, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultThumbnailMaxDimension
	}

	img, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedThumbnail
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	newWidth, newHeight := calculateThumbnailDimensions(bounds.Dx(), bounds.Dy(), maxDimension)

	var out image.Image = img
	if newWidth != bounds.Dx() || newHeight != bounds.Dy() {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("original_width", bounds.Dx()).
		Int("original_height", bounds.Dy()).
		Int("thumb_width", newWidth).
		Int("thumb_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Thumbnail generated")

	return buf.Bytes(), nil
}

// CanThumbnail reports whether GenerateThumbnail can decode the given MIME type.
func CanThumbnail(mimeType string) bool {
	switch normalizeContentType(mimeType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

// calculateThumbnailDimensions calculates new dimensions that fit within
// maxDimension while preserving aspect ratio. Never upscales.
func calculateThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxDimension
		newHeight = int(float64(height) * float64(maxDimension) / float64(width))
	} else {
		newHeight = maxDimension
		newWidth = int(float64(width) * float64(maxDimension) / float64(height))
	}

	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return newWidth, newHeight
}
