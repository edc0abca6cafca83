package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/triage"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard.
const zipMethodZstd uint16 = zstd.ZipMethodWinZip

// ManifestName is the decisions manifest written at the archive root.
const ManifestName = "manifest.json"

// File is one kept photo to archive.
type File struct {
	Name    string
	ModTime time.Time
	Open    func() (io.ReadCloser, error)
}

// Manifest describes the session an archive came from.
type Manifest struct {
	SessionID string            `json:"sessionId"`
	CreatedAt time.Time         `json:"createdAt"`
	Stats     triage.Stats      `json:"stats"`
	Decisions []triage.Decision `json:"decisions"`
}

// KeptArchive writes a zstd-compressed ZIP of files followed by manifest.json.
// Files that fail to open are skipped and logged; write errors abort.
// Entry names are made unique so two photos with the same name both survive.
func KeptArchive(w io.Writer, files []File, manifest Manifest) (int, error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zipMethodZstd, func(out io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	})

	seen := make(map[string]bool, len(files))
	written := 0
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			log.Warn().Err(err).Str("name", f.Name).Msg("Failed to open file for ZIP, skipping")
			continue
		}

		name := uniqueName(path.Base(f.Name), seen)
		header := &zip.FileHeader{Name: name, Method: zipMethodZstd}
		modTime := f.ModTime
		if modTime.IsZero() {
			modTime = time.Now()
		}
		header.Modified = modTime

		entry, err := zw.CreateHeader(header)
		if err != nil {
			rc.Close()
			return written, fmt.Errorf("create ZIP entry for %s: %w", name, err)
		}
		if _, err := io.Copy(entry, rc); err != nil {
			rc.Close()
			return written, fmt.Errorf("write to ZIP for %s: %w", name, err)
		}
		rc.Close()
		written++
	}

	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	entry, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: manifest.CreatedAt})
	if err != nil {
		return written, fmt.Errorf("create manifest entry: %w", err)
	}
	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return written, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("close ZIP writer: %w", err)
	}
	log.Debug().Int("files", written).Str("sessionId", manifest.SessionID).Msg("Kept archive written")
	return written, nil
}

func uniqueName(name string, seen map[string]bool) string {
	if name == "" || name == "." || name == "/" {
		name = "photo"
	}
	candidate := name
	ext := path.Ext(name)
	for n := 1; seen[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
	}
	seen[candidate] = true
	return candidate
}
