// Package ingest turns photos on disk or in an upload into the ordered
// working set a triage engine walks.
package ingest

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/filehandler"
	"github.com/fpang/swipe-story/internal/triage"
)

// MaxPhotoSize is the largest accepted upload.
const MaxPhotoSize int64 = 50 * 1024 * 1024 // 50 MB

// Ingest failures. Upload errors wrap these with the offending filename.
var (
	ErrNoPhotos        = errors.New("no photos")
	ErrTooMany         = errors.New("too many photos")
	ErrTooLarge        = errors.New("photo exceeds the 50 MB limit")
	ErrUnsupportedType = errors.New("unsupported photo type")
	ErrInvalidFilename = errors.New("invalid filename")
)

// MaxPhotos caps a single working set.
const MaxPhotos = 500

// Order selects how a directory's photos are ordered.
type Order string

const (
	// OrderName sorts by path, the scan order.
	OrderName Order = "name"
	// OrderTaken sorts by capture time (EXIF, falling back to mtime), ties by path.
	OrderTaken Order = "taken"
)

// ParseOrder accepts "name" or "taken"; "" means OrderName.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case "", OrderName:
		return OrderName, nil
	case OrderTaken:
		return OrderTaken, nil
	}
	return "", fmt.Errorf("unknown order %q (want name or taken)", s)
}

// DirOptions configures FromDirectory.
type DirOptions struct {
	MaxDepth int
	Limit    int
	Order    Order
}

// FromDirectory scans dir for photos and returns them as items with IDs
// 0..n-1 in the requested order. Ref is the absolute path.
func FromDirectory(dir string, opts DirOptions) ([]triage.Item, error) {
	limit := opts.Limit
	if limit <= 0 || limit > MaxPhotos {
		limit = MaxPhotos
	}
	files, err := filehandler.ScanDirectory(dir, filehandler.ScanOptions{
		MaxDepth: opts.MaxDepth,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPhotos, dir)
	}

	if opts.Order == OrderTaken {
		sort.SliceStable(files, func(i, j int) bool {
			ti, tj := files[i].TakenAt(), files[j].TakenAt()
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return files[i].Path < files[j].Path
		})
	}

	items := make([]triage.Item, len(files))
	for i, f := range files {
		items[i] = triage.Item{
			ID:       i,
			Ref:      f.Path,
			Name:     f.Name(),
			MIMEType: f.MIMEType,
			Size:     f.Size,
		}
		if f.Metadata != nil && f.Metadata.HasDate {
			items[i].TakenAt = f.Metadata.DateTaken
		}
	}

	log.Info().
		Str("directory", dir).
		Int("count", len(items)).
		Str("order", string(opts.Order)).
		Msg("Photos ingested from directory")
	return items, nil
}

// unsafeFilenameChars matches anything outside alphanumerics, dots, hyphens,
// underscores, spaces, and parentheses.
var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._ ()-]`)

// SanitizeFilename rejects names that try to traverse directories and
// replaces any other unsafe characters with underscores.
func SanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: filename is required", ErrInvalidFilename)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}

	clean := unsafeFilenameChars.ReplaceAllString(name, "_")
	clean = strings.TrimLeft(clean, ". ")
	if len(clean) > 255 {
		ext := filepath.Ext(clean)
		clean = clean[:255-len(ext)] + ext
	}
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return clean, nil
}

// BatchPrefix returns a fresh key prefix for one upload batch of a session.
// A reset uploads into a new batch, so the photos it replaces stay readable
// until the session has switched over.
func BatchPrefix(sessionID string) string {
	return SessionPrefix(sessionID) + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// BlobKey is where an uploaded photo's bytes live within a batch.
func BlobKey(batch string, id int, name string) string {
	return fmt.Sprintf("%s/%d-%s", batch, id, name)
}

// ThumbnailKey is where an uploaded item's thumbnail lives. It sits beside
// the item's blob; IDs are unique within a batch, so the ID names it.
func ThumbnailKey(it triage.Item) string {
	return fmt.Sprintf("%s/thumbs/%d.jpg", path.Dir(it.Ref), it.ID)
}

// ItemKeys lists every blob key an uploaded item may own.
func ItemKeys(items []triage.Item) []string {
	keys := make([]string, 0, 2*len(items))
	for _, it := range items {
		keys = append(keys, it.Ref, ThumbnailKey(it))
	}
	return keys
}

// SessionPrefix is the key prefix shared by all of a session's blobs.
func SessionPrefix(sessionID string) string {
	return sessionID + "/"
}
