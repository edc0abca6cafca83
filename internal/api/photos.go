package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/export"
	"github.com/fpang/swipe-story/internal/filehandler"
	"github.com/fpang/swipe-story/internal/ingest"
	"github.com/fpang/swipe-story/internal/storage"
	"github.com/fpang/swipe-story/internal/triage"
)

type keptItem struct {
	triage.Item
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// photoPath is the API route serving a photo through Open.
func photoPath(sessionID string, id int, thumb bool) string {
	p := fmt.Sprintf("/api/sessions/%s/photos/%d", sessionID, id)
	if thumb {
		p += "?thumb=1"
	}
	return p
}

// GET /api/sessions/{id}/kept
func (s *server) handleKept(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	kept, err := s.cfg.Sessions.Kept(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]keptItem, len(kept))
	for i, it := range kept {
		out[i] = keptItem{Item: it, URL: photoPath(id, it.ID, false), ThumbnailURL: photoPath(id, it.ID, true)}
		if u, err := s.cfg.Blobs.URL(ctx, it.Ref); err == nil && u != "" {
			out[i].URL = u
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessionId": id, "kept": out})
}

// GET /api/sessions/{id}/photos/{photoID}[?thumb=1]
//
// Stores that can hand out direct URLs get a redirect; otherwise the bytes
// are streamed. A missing thumbnail is rendered on the fly.
func (s *server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	photoID, err := strconv.Atoi(chi.URLParam(r, "photoID"))
	if err != nil || photoID < 0 {
		httpError(w, http.StatusBadRequest, "invalid photo ID")
		return
	}
	ctx := r.Context()
	item, err := s.cfg.Sessions.Item(ctx, id, photoID)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("thumb") == "1" {
		s.serveThumbnail(w, r, item)
		return
	}
	s.serveBlob(w, r, item.Ref, item.MIMEType)
}

func (s *server) serveBlob(w http.ResponseWriter, r *http.Request, key, contentType string) {
	ctx := r.Context()
	if u, err := s.cfg.Blobs.URL(ctx, key); err == nil && u != "" {
		http.Redirect(w, r, u, http.StatusFound)
		return
	}
	rc, err := s.cfg.Blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			httpError(w, http.StatusNotFound, "photo not found")
			return
		}
		httpError(w, http.StatusInternalServerError, "failed to read photo", err.Error())
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to stream photo")
	}
}

func (s *server) serveThumbnail(w http.ResponseWriter, r *http.Request, item triage.Item) {
	ctx := r.Context()
	key := ingest.ThumbnailKey(item)
	rc, err := s.cfg.Blobs.Open(ctx, key)
	if err == nil {
		rc.Close()
		s.serveBlob(w, r, key, filehandler.ThumbnailMIMEType)
		return
	}

	if !filehandler.CanThumbnail(item.MIMEType) {
		// HEIC and friends have no thumbnail; the browser gets the original.
		s.serveBlob(w, r, item.Ref, item.MIMEType)
		return
	}
	thumb, err := s.renderThumbnail(ctx, item)
	if err != nil {
		log.Warn().Err(err).Str("key", item.Ref).Msg("Failed to generate thumbnail")
		httpError(w, http.StatusInternalServerError, "thumbnail generation failed")
		return
	}
	w.Header().Set("Content-Type", filehandler.ThumbnailMIMEType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(thumb)
}

func (s *server) renderThumbnail(ctx context.Context, item triage.Item) ([]byte, error) {
	rc, err := s.cfg.Blobs.Open(ctx, item.Ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ingest.Thumbnail(rc, filehandler.DefaultThumbnailMaxDimension)
}

// readBlob loads a whole blob, for photos sent inline to Gemini or a vendor.
func (s *server) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.cfg.Blobs.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, ingest.MaxPhotoSize+1))
}

// GET /api/sessions/{id}/export.zip
func (s *server) handleExportZip(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	kept, err := s.cfg.Sessions.Kept(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(kept) == 0 {
		httpError(w, http.StatusConflict, "no kept photos to export")
		return
	}
	stats, err := s.cfg.Sessions.Stats(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	decisions, err := s.cfg.Sessions.Decisions(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	files := make([]export.File, len(kept))
	for i, it := range kept {
		files[i] = export.File{
			Name:    it.Name,
			ModTime: it.TakenAt,
			Open: func() (io.ReadCloser, error) {
				return s.cfg.Blobs.Open(ctx, it.Ref)
			},
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="kept-photos-%s.zip"`, id))
	manifest := export.Manifest{SessionID: id, CreatedAt: s.cfg.Now().UTC(), Stats: stats, Decisions: decisions}
	if _, err := export.KeptArchive(w, files, manifest); err != nil {
		// Headers are gone; all that is left is to log and cut the stream.
		log.Error().Err(err).Str("sessionId", id).Msg("Kept archive failed mid-stream")
	}
}

// GET /api/sessions/{id}/storybook
func (s *server) handleStorybook(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	cfg, err := videoConfigFromQuery(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	kept, err := s.cfg.Sessions.Kept(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(kept) == 0 {
		httpError(w, http.StatusConflict, "no kept photos for a storybook")
		return
	}

	pages, photos, err := s.storybookPages(ctx, kept)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load photos", err.Error())
		return
	}
	st, _ := s.narrate(ctx, photos, len(kept), cfg)

	book := export.Book{
		Title:   st.Title,
		Created: s.cfg.Now().Format("January 2, 2006"),
		Closing: st.Closing,
		Pages:   pages,
	}
	for i := range book.Pages {
		book.Pages[i].Caption = st.Caption(i)
	}

	var buf bytes.Buffer
	if err := export.Storybook(&buf, book); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to render storybook", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="storybook-%s.html"`, id))
	w.Write(buf.Bytes())
}
