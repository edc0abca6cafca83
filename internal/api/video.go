package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/jobs"
	"github.com/fpang/swipe-story/internal/session"
	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/story"
	"github.com/fpang/swipe-story/internal/triage"
)

type generateVideoRequest struct {
	SessionID string            `json:"sessionId"`
	Service   string            `json:"service,omitempty"`
	Config    story.VideoConfig `json:"config"`
}

type videoTaskResponse struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	Service  string `json:"service"`
	Progress int    `json:"progress"`
	VideoURL string `json:"videoUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

func taskResponse(t *store.VideoTask) videoTaskResponse {
	resp := videoTaskResponse{
		TaskID:   t.ID,
		Status:   t.Status,
		Service:  t.Service,
		Progress: t.Progress,
		Error:    t.Error,
	}
	if t.Status == store.TaskCompleted {
		resp.VideoURL = "/api/video/download/" + t.ID
	}
	return resp
}

// taskID reads and validates the {taskID} URL parameter.
func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "taskID")
	if !jobs.ValidID(id, jobs.VideoPrefix) {
		httpError(w, http.StatusBadRequest, "invalid task ID")
		return "", false
	}
	return id, true
}

// POST /api/generate-video {"sessionId", "service"?, "config"}
func (s *server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	req := generateVideoRequest{Config: story.DefaultVideoConfig()}
	if !decodeJSON(w, r, maxJSONBody, &req) {
		return
	}
	if !session.ValidID(req.SessionID) {
		httpError(w, http.StatusBadRequest, "invalid session ID")
		return
	}
	if err := req.Config.Normalize(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	kept, err := s.cfg.Sessions.Kept(ctx, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(kept) == 0 {
		httpError(w, http.StatusConflict, "no kept photos to make a video from")
		return
	}
	photos, err := s.videoPhotos(ctx, kept)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load photos", err.Error())
		return
	}

	task, err := s.cfg.Videos.Create(ctx, req.SessionID, req.Service, story.NewRequest(photos, req.Config, nil))
	if err != nil {
		if task != nil {
			// The failure is recorded on the task; the client can still poll it.
			log.Warn().Err(err).Str("taskId", task.ID).Msg("Video submit failed")
		}
		writeError(w, err)
		return
	}
	if s.cfg.BackgroundPolling {
		if err := s.cfg.Videos.Start(task); err != nil {
			log.Error().Err(err).Str("taskId", task.ID).Msg("Failed to start video poller")
		}
	}
	respondJSON(w, http.StatusAccepted, taskResponse(task))
}

// videoPhotos builds vendor inputs for the kept photos. Every photo gets a
// direct URL when the store provides one; the first, which single-image
// vendors animate, also carries its bytes.
func (s *server) videoPhotos(ctx context.Context, kept []triage.Item) ([]story.Photo, error) {
	photos := make([]story.Photo, len(kept))
	for i, it := range kept {
		photos[i] = story.Photo{Name: it.Name, MIMEType: it.MIMEType}
		if u, err := s.cfg.Blobs.URL(ctx, it.Ref); err == nil {
			photos[i].URL = u
		}
	}
	data, err := s.readBlob(ctx, kept[0].Ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kept[0].Ref, err)
	}
	photos[0].Data = data
	return photos, nil
}

// GET /api/video-status/{taskID}
func (s *server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := s.cfg.Videos.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, taskResponse(task))
}

// POST /api/video/{taskID}/cancel
func (s *server) handleCancelVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := s.cfg.Videos.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, taskResponse(task))
}

// GET /api/video/download/{taskID}
func (s *server) handleDownloadVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	body, contentType, err := s.cfg.Videos.Download(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="travel-video-%s.mp4"`, id))
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Str("taskId", id).Msg("Video download interrupted")
	}
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// GET /api/video-status/{taskID}/ws
//
// Streams a status message whenever the task changes and closes once it is
// terminal. Status is re-read on an interval, which also drives on-demand
// polling when no background poller owns the task.
func (s *server) handleVideoProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := s.cfg.Videos.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Warn().Err(err).Str("taskId", id).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readUntilClose(conn, cancel)

	ticker := time.NewTicker(s.cfg.ProgressInterval)
	defer ticker.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	var last videoTaskResponse
	for {
		resp := taskResponse(task)
		if resp != last {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(resp); err != nil {
				log.Debug().Err(err).Str("taskId", id).Msg("WebSocket write failed")
				return
			}
			last = resp
		}
		if task.Terminal() {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, task.Status))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case <-ticker.C:
		}

		next, err := s.cfg.Videos.Status(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn().Err(err).Str("taskId", id).Msg("Progress status read failed")
			continue
		}
		task = next
	}
}

// readUntilClose drains client frames so pongs and close frames are
// processed, and cancels once the client goes away.
func readUntilClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
