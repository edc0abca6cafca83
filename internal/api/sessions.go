package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/ingest"
	"github.com/fpang/swipe-story/internal/session"
	"github.com/fpang/swipe-story/internal/storage"
	"github.com/fpang/swipe-story/internal/triage"
)

const (
	// maxUploadBytes bounds one multipart request.
	maxUploadBytes = 2 << 30
	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to temp files.
	multipartMemory = 32 << 20
	maxJSONBody     = 1 << 20
)

// sessionID reads and validates the {id} URL parameter.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !session.ValidID(id) {
		httpError(w, http.StatusBadRequest, "invalid session ID")
		return "", false
	}
	return id, true
}

// uploadedParts parses the multipart "photos" field. The returned cleanup
// removes any temp files the parser created.
func uploadedParts(w http.ResponseWriter, r *http.Request) ([]ingest.Part, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, func() {}, err
	}
	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove multipart temp files")
		}
	}
	return ingest.PartsFromMultipart(r.MultipartForm.File["photos"]), cleanup, nil
}

// POST /api/sessions (multipart "photos")
func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	parts, cleanup, err := uploadedParts(w, r)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart upload", err.Error())
		return
	}
	defer cleanup()

	ctx := r.Context()
	id := session.NewID()
	items, err := ingest.FromUploads(ctx, s.cfg.Blobs, ingest.BatchPrefix(id), parts)
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := s.cfg.Sessions.CreateWithID(ctx, id, items)
	if err != nil {
		ingest.DeleteSessionBlobs(context.WithoutCancel(ctx), s.cfg.Blobs, items)
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

// GET /api/sessions/{id}
func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.cfg.Sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// DELETE /api/sessions/{id} removes the session and its blobs.
func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	items, err := s.cfg.Sessions.Items(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cfg.Sessions.Delete(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	ingest.DeleteSessionBlobs(context.WithoutCancel(ctx), s.cfg.Blobs, items)
	respondJSON(w, http.StatusOK, map[string]any{"sessionId": id, "deleted": true})
}

type decideRequest struct {
	Tag string `json:"tag"`
}

// POST /api/sessions/{id}/decide {"tag":"keep"|"delete"}
func (s *server) handleDecide(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req decideRequest
	if !decodeJSON(w, r, maxJSONBody, &req) {
		return
	}
	tag, err := triage.ParseTag(req.Tag)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	snap, err := s.cfg.Sessions.Decide(ctx, id, tag)
	if err != nil {
		writeError(w, err)
		return
	}
	if d := snap.LastDecision; d != nil {
		s.tagBlob(ctx, d.Item, d.Tag)
	}
	respondJSON(w, http.StatusOK, snap)
}

type undoResponse struct {
	session.Snapshot
	Undone bool `json:"undone"`
}

// POST /api/sessions/{id}/undo
func (s *server) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	snap, undone, err := s.cfg.Sessions.Undo(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	// The reverted photo is current again; clear a pending delete label.
	if undone && snap.Current != nil {
		s.tagBlob(ctx, *snap.Current, triage.Keep)
	}
	respondJSON(w, http.StatusOK, undoResponse{Snapshot: snap, Undone: undone})
}

// tagBlob labels a photo's blob; failures only log since the decision itself
// is already stored.
func (s *server) tagBlob(ctx context.Context, item triage.Item, tag triage.Tag) {
	if err := storage.TagDecision(ctx, s.cfg.Blobs, item.Ref, tag); err != nil {
		log.Warn().Err(err).Str("key", item.Ref).Str("tag", tag.String()).Msg("Failed to tag photo blob")
	}
}

// GET /api/sessions/{id}/stats
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := s.cfg.Sessions.Stats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// POST /api/sessions/{id}/reset
//
// A multipart body with "photos" replaces the working set; an empty body
// restarts triage over the current photos. Replacement photos go to a new
// batch prefix, and the old batch is removed only once the session points
// at the new one.
func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	old, err := s.cfg.Sessions.Items(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	items, replaced := old, false
	if r.ContentLength != 0 && r.Header.Get("Content-Type") != "" {
		parts, cleanup, err := uploadedParts(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid multipart upload", err.Error())
			return
		}
		defer cleanup()
		if len(parts) > 0 {
			if items, err = ingest.FromUploads(ctx, s.cfg.Blobs, ingest.BatchPrefix(id), parts); err != nil {
				writeError(w, err)
				return
			}
			replaced = true
		}
	}

	snap, err := s.cfg.Sessions.Reset(ctx, id, items)
	if err != nil {
		if replaced {
			ingest.DeleteSessionBlobs(context.WithoutCancel(ctx), s.cfg.Blobs, items)
		}
		writeError(w, err)
		return
	}
	if replaced {
		ingest.DeleteSessionBlobs(context.WithoutCancel(ctx), s.cfg.Blobs, old)
	}
	respondJSON(w, http.StatusOK, snap)
}
