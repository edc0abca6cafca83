package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/ingest"
	"github.com/fpang/swipe-story/internal/session"
	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/story"
	"github.com/fpang/swipe-story/internal/triage"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. The clientMsg is returned to the caller.
// Optional internalDetails are logged server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		uploadErr *ingest.UploadError
		apiErr    *story.APIError
	)
	switch {
	case errors.Is(err, session.ErrInvalidID):
		httpError(w, http.StatusBadRequest, "invalid session ID")
	case errors.Is(err, session.ErrNotFound):
		httpError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrPhotoNotFound):
		httpError(w, http.StatusNotFound, "photo not found")
	case triage.IsOutOfRange(err):
		httpError(w, http.StatusConflict, "out_of_range")
	case errors.Is(err, store.ErrVersionConflict):
		httpError(w, http.StatusConflict, "session was modified concurrently, retry")
	case errors.Is(err, ingest.ErrTooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &uploadErr),
		errors.Is(err, ingest.ErrNoPhotos),
		errors.Is(err, ingest.ErrTooMany),
		errors.Is(err, ingest.ErrUnsupportedType),
		errors.Is(err, ingest.ErrInvalidFilename):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, story.ErrTaskNotFound):
		httpError(w, http.StatusNotFound, "video task not found")
	case errors.Is(err, story.ErrNotReady):
		httpError(w, http.StatusConflict, "video is not ready")
	case errors.Is(err, story.ErrUnknownService):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		httpError(w, http.StatusBadGateway, "video service error: "+apiErr.Message, err.Error())
	default:
		httpError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// decodeJSON reads a JSON request body of at most limit bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		httpError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
