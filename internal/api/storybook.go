package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/export"
	"github.com/fpang/swipe-story/internal/filehandler"
	"github.com/fpang/swipe-story/internal/ingest"
	"github.com/fpang/swipe-story/internal/narrator"
	"github.com/fpang/swipe-story/internal/session"
	"github.com/fpang/swipe-story/internal/storage"
	"github.com/fpang/swipe-story/internal/story"
	"github.com/fpang/swipe-story/internal/triage"
)

// maxStoryBody bounds /api/generate-travel-story, whose photos arrive base64
// encoded.
const maxStoryBody = 200 << 20

// Story sources reported to the client.
const (
	sourceGemini   = "gemini"
	sourceTemplate = "template"
)

func videoConfigFromQuery(r *http.Request) (story.VideoConfig, error) {
	q := r.URL.Query()
	cfg := story.DefaultVideoConfig()
	cfg.Style = story.Style(q.Get("style"))
	cfg.Music = story.Music(q.Get("music"))
	cfg.Title = q.Get("title")
	if v := q.Get("captions"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("captions must be true or false")
		}
		cfg.AddCaptions = b
	}
	return cfg, cfg.Normalize()
}

// narrate asks Gemini for the story of photos, falling back to the caption
// templates for n photos when Gemini is not configured, the set is too large,
// or the call fails.
func (s *server) narrate(ctx context.Context, photos []narrator.Photo, n int, cfg story.VideoConfig) (*narrator.Story, string) {
	if s.cfg.Narrator != nil && len(photos) > 0 && len(photos) <= narrator.MaxPhotos {
		st, err := s.cfg.Narrator.Narrate(ctx, photos, cfg)
		if err == nil {
			return st, sourceGemini
		}
		log.Warn().Err(err).Int("photos", len(photos)).Msg("Gemini storybook failed, using caption templates")
	}
	return narrator.Fallback(n, cfg), sourceTemplate
}

// previewBytes returns a photo's stored thumbnail, or the original when it
// has none.
func (s *server) previewBytes(ctx context.Context, it triage.Item) ([]byte, string, error) {
	data, err := s.readBlob(ctx, ingest.ThumbnailKey(it))
	if err == nil {
		return data, filehandler.ThumbnailMIMEType, nil
	}
	if !errors.Is(err, storage.ErrNotExist) {
		return nil, "", err
	}
	data, err = s.readBlob(ctx, it.Ref)
	return data, it.MIMEType, err
}

func itemMetadata(it triage.Item) *filehandler.ImageMetadata {
	if it.TakenAt.IsZero() {
		return nil
	}
	return &filehandler.ImageMetadata{DateTaken: it.TakenAt, HasDate: true}
}

// storybookPages builds the pages for kept and, when Gemini will be asked,
// the photos to send it. Pages link to direct URLs when the blob store has
// them and embed previews otherwise.
func (s *server) storybookPages(ctx context.Context, kept []triage.Item) ([]export.Page, []narrator.Photo, error) {
	wantPhotos := s.cfg.Narrator != nil && len(kept) <= narrator.MaxPhotos
	pages := make([]export.Page, len(kept))
	var photos []narrator.Photo

	for i, it := range kept {
		pages[i] = export.Page{Name: it.Name}
		if !it.TakenAt.IsZero() {
			pages[i].Meta = it.TakenAt.Format("Monday, January 2, 2006")
		}

		u, _ := s.cfg.Blobs.URL(ctx, it.Ref)
		if u != "" {
			pages[i].Src = export.ImageURL(u)
		}
		if u != "" && !wantPhotos {
			continue
		}

		data, mimeType, err := s.previewBytes(ctx, it)
		if err != nil {
			return nil, nil, err
		}
		if u == "" {
			pages[i].Src = export.DataURI(mimeType, data)
		}
		if wantPhotos {
			photos = append(photos, narrator.Photo{Name: it.Name, MIMEType: mimeType, Data: data, Metadata: itemMetadata(it)})
		}
	}
	return pages, photos, nil
}

type storyPhoto struct {
	// Data is base64, optionally as a data: URI.
	Data     string `json:"data"`
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType,omitempty"`
}

type travelStoryRequest struct {
	Photos    []storyPhoto      `json:"photos"`
	SessionID string            `json:"sessionId,omitempty"`
	Config    story.VideoConfig `json:"config"`
}

type travelStoryResponse struct {
	Story    string             `json:"story"`
	Title    string             `json:"title"`
	Chapters []narrator.Chapter `json:"chapters"`
	Closing  string             `json:"closing,omitempty"`
	Source   string             `json:"source"`
}

// decodePhoto turns an uploaded base64 photo into narrator input.
func decodePhoto(p storyPhoto) (narrator.Photo, error) {
	data := p.Data
	mimeType := p.MIMEType
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return narrator.Photo{}, errors.New("photo data URI must be base64")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return narrator.Photo{}, errors.New("photo data is not valid base64")
	}
	if mimeType == "" {
		if mimeType, err = filehandler.GetMIMEType(filepath.Ext(p.Filename)); err != nil {
			return narrator.Photo{}, err
		}
	}
	if !filehandler.IsImageContentType(mimeType) {
		return narrator.Photo{}, ingest.ErrUnsupportedType
	}

	photo := narrator.Photo{Name: p.Filename, MIMEType: mimeType, Data: raw}
	if meta, err := filehandler.DecodeImageMetadata(bytes.NewReader(raw)); err == nil {
		photo.Metadata = meta
	}
	return photo, nil
}

// POST /api/generate-travel-story
//
// Photos come either inline as base64 or, with sessionId, from the
// session's kept photos.
func (s *server) handleTravelStory(w http.ResponseWriter, r *http.Request) {
	req := travelStoryRequest{Config: story.DefaultVideoConfig()}
	if !decodeJSON(w, r, maxStoryBody, &req) {
		return
	}
	if err := req.Config.Normalize(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	var photos []narrator.Photo
	switch {
	case len(req.Photos) > 0:
		if len(req.Photos) > narrator.MaxPhotos {
			httpError(w, http.StatusBadRequest, "too many photos for one story")
			return
		}
		for _, p := range req.Photos {
			photo, err := decodePhoto(p)
			if err != nil {
				httpError(w, http.StatusBadRequest, p.Filename+": "+err.Error())
				return
			}
			photos = append(photos, photo)
		}
	case req.SessionID != "":
		if !session.ValidID(req.SessionID) {
			httpError(w, http.StatusBadRequest, "invalid session ID")
			return
		}
		kept, err := s.cfg.Sessions.Kept(ctx, req.SessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(kept) > narrator.MaxPhotos {
			kept = kept[:narrator.MaxPhotos]
		}
		for _, it := range kept {
			data, mimeType, err := s.previewBytes(ctx, it)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "failed to load photos", err.Error())
				return
			}
			photos = append(photos, narrator.Photo{Name: it.Name, MIMEType: mimeType, Data: data, Metadata: itemMetadata(it)})
		}
	}
	if len(photos) == 0 {
		httpError(w, http.StatusBadRequest, "no photos provided")
		return
	}

	st, source := s.narrate(ctx, photos, len(photos), req.Config)
	respondJSON(w, http.StatusOK, travelStoryResponse{
		Story:    st.Text(),
		Title:    st.Title,
		Chapters: st.Chapters,
		Closing:  st.Closing,
		Source:   source,
	})
}
