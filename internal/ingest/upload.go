package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/swipe-story/internal/filehandler"
	"github.com/fpang/swipe-story/internal/storage"
	"github.com/fpang/swipe-story/internal/triage"
)

// uploadConcurrency bounds how many photos are decoded and stored at once.
const uploadConcurrency = 4

// Part is one uploaded photo.
type Part struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// PartsFromMultipart adapts parsed multipart file headers.
func PartsFromMultipart(headers []*multipart.FileHeader) []Part {
	parts := make([]Part, len(headers))
	for i, fh := range headers {
		parts[i] = Part{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}
	return parts
}

// UploadError reports which upload was rejected and why.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type validPart struct {
	Part
	name     string
	mimeType string
}

// validate checks every part before any bytes are stored.
func validate(parts []Part) ([]validPart, error) {
	if len(parts) == 0 {
		return nil, ErrNoPhotos
	}
	if len(parts) > MaxPhotos {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooMany, len(parts), MaxPhotos)
	}

	out := make([]validPart, len(parts))
	for i, p := range parts {
		name, err := SanitizeFilename(p.Filename)
		if err != nil {
			return nil, &UploadError{Filename: p.Filename, Err: err}
		}
		if p.Size > MaxPhotoSize {
			return nil, &UploadError{Filename: p.Filename, Err: ErrTooLarge}
		}

		mimeType, ok := photoType(p.ContentType, name)
		if !ok {
			return nil, &UploadError{Filename: p.Filename, Err: fmt.Errorf("%w: %q", ErrUnsupportedType, p.ContentType)}
		}
		out[i] = validPart{Part: p, name: name, mimeType: mimeType}
	}
	return out, nil
}

// photoType picks the MIME type from the declared content type, or from the
// extension when the browser sent a generic one.
func photoType(contentType, name string) (string, bool) {
	if filehandler.IsImageContentType(contentType) {
		ext, _ := filehandler.ExtForContentType(contentType)
		mt, _ := filehandler.GetMIMEType(ext)
		return mt, true
	}
	if contentType != "" && contentType != "application/octet-stream" {
		return "", false
	}
	mt, err := filehandler.GetMIMEType(filepath.Ext(name))
	return mt, err == nil
}

// FromUploads validates parts, writes each photo and its thumbnail to blobs
// under batch (see BatchPrefix), and returns items in upload order with IDs
// 0..n-1. On failure every blob written so far is removed; keys outside
// batch are never touched.
func FromUploads(ctx context.Context, blobs storage.Store, batch string, parts []Part) ([]triage.Item, error) {
	valid, err := validate(parts)
	if err != nil {
		return nil, err
	}

	items := make([]triage.Item, len(valid))
	written := make([][]string, len(valid))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, p := range valid {
		g.Go(func() error {
			item, keys, err := storeOne(gctx, blobs, batch, i, p)
			written[i] = keys
			if err != nil {
				return &UploadError{Filename: p.Filename, Err: err}
			}
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		cleanup(context.WithoutCancel(ctx), blobs, written)
		return nil, err
	}

	log.Info().
		Str("batch", batch).
		Int("count", len(items)).
		Msg("Photos ingested from upload")
	return items, nil
}

func storeOne(ctx context.Context, blobs storage.Store, batch string, id int, p validPart) (triage.Item, []string, error) {
	rc, err := p.Open()
	if err != nil {
		return triage.Item{}, nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxPhotoSize+1))
	if err != nil {
		return triage.Item{}, nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > MaxPhotoSize {
		return triage.Item{}, nil, ErrTooLarge
	}

	item := triage.Item{
		ID:       id,
		Ref:      BlobKey(batch, id, p.name),
		Name:     p.name,
		MIMEType: p.mimeType,
		Size:     int64(len(data)),
	}
	if meta, err := filehandler.DecodeImageMetadata(bytes.NewReader(data)); err == nil && meta.HasDate {
		item.TakenAt = meta.DateTaken
	}

	var keys []string
	if err := blobs.Put(ctx, item.Ref, bytes.NewReader(data), item.MIMEType); err != nil {
		return triage.Item{}, keys, err
	}
	keys = append(keys, item.Ref)

	if filehandler.CanThumbnail(item.MIMEType) {
		thumb, err := filehandler.GenerateThumbnail(bytes.NewReader(data), filehandler.DefaultThumbnailMaxDimension)
		switch {
		case err == nil:
			key := ThumbnailKey(item)
			if err := blobs.Put(ctx, key, bytes.NewReader(thumb), filehandler.ThumbnailMIMEType); err != nil {
				return triage.Item{}, keys, err
			}
			keys = append(keys, key)
		case errors.Is(err, filehandler.ErrUnsupportedThumbnail):
		default:
			// A photo we cannot decode is still triageable; the card shows the original.
			log.Warn().Err(err).Str("file", p.name).Msg("Thumbnail generation failed")
		}
	}

	return item, keys, nil
}

// Thumbnail renders a JPEG thumbnail for a photo that has no stored one.
func Thumbnail(r io.Reader, maxDimension int) ([]byte, error) {
	return filehandler.GenerateThumbnail(r, maxDimension)
}

func cleanup(ctx context.Context, blobs storage.Store, written [][]string) {
	for _, keys := range written {
		for _, key := range keys {
			if err := blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotExist) {
				log.Warn().Err(err).Str("key", key).Msg("Failed to remove blob")
			}
		}
	}
}

// DeleteSessionBlobs removes the blobs FromUploads wrote for items.
func DeleteSessionBlobs(ctx context.Context, blobs storage.Store, items []triage.Item) {
	cleanup(ctx, blobs, [][]string{ItemKeys(items)})
}
