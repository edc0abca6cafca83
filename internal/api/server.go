// Package api is the HTTP surface of swipe-story: photo upload and triage
// sessions, kept-photo exports, and travel video generation.
package api

import (
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/fpang/swipe-story/internal/narrator"
	"github.com/fpang/swipe-story/internal/session"
	"github.com/fpang/swipe-story/internal/storage"
	"github.com/fpang/swipe-story/internal/story"
)

// DefaultProgressInterval is how often the progress websocket re-reads a task.
const DefaultProgressInterval = 2 * time.Second

// Config wires the router to its backends.
type Config struct {
	Sessions *session.Manager
	Blobs    storage.Store
	Videos   *story.Client
	// Narrator writes storybook captions with Gemini. Nil means the caption
	// templates are used.
	Narrator *narrator.Narrator

	// ServiceName is reported by the health check.
	ServiceName string
	// Configured reports which external services have credentials, for the
	// health check.
	Configured map[string]bool

	// StaticDir, when set, is served at / with an index.html fallback.
	StaticDir string

	// BackgroundPolling starts a poller for each new video task. Without it
	// tasks advance when their status is requested, which suits Lambda.
	BackgroundPolling bool

	// Metrics enables per-request EMF metrics.
	Metrics bool
	// OriginVerifySecret, when set, is required in the x-origin-verify header.
	OriginVerifySecret string

	ProgressInterval time.Duration
	Now              func() time.Time
}

type server struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(cfg Config) *chi.Mux {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "swipe-story"
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkWebSocketOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withLogging)
	r.Use(withRecovery)
	r.Use(withCORS)
	r.Use(withSecurityHeaders)
	if cfg.Metrics {
		r.Use(withMetrics)
	}
	r.Use(withOriginVerify(cfg.OriginVerifySecret))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/decide", s.handleDecide)
			r.Post("/undo", s.handleUndo)
			r.Get("/stats", s.handleStats)
			r.Post("/reset", s.handleReset)
			r.Get("/kept", s.handleKept)
			r.Get("/photos/{photoID}", s.handlePhoto)
			r.Get("/export.zip", s.handleExportZip)
			r.Get("/storybook", s.handleStorybook)
		})

		r.Post("/generate-video", s.handleGenerateVideo)
		r.Get("/video-status/{taskID}", s.handleVideoStatus)
		r.Get("/video-status/{taskID}/ws", s.handleVideoProgress)
		r.Post("/video/{taskID}/cancel", s.handleCancelVideo)
		r.Get("/video/download/{taskID}", s.handleDownloadVideo)

		r.Post("/generate-travel-story", s.handleTravelStory)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpError(w, http.StatusNotFound, "not found")
		})
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", spaHandler(cfg.StaticDir))
	}
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	configured := s.cfg.Configured
	if configured == nil {
		configured = map[string]bool{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"service":    s.cfg.ServiceName,
		"configured": configured,
		"time":       s.cfg.Now().UTC().Format(time.RFC3339),
	})
}

// spaHandler serves files from dir, falling back to index.html for client
// routes.
func spaHandler(dir string) http.Handler {
	root := os.DirFS(dir)
	fileServer := http.FileServer(http.FS(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if p != "" {
			if f, err := root.Open(p); err != nil {
				r.URL.Path = "/"
			} else {
				f.Close()
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}

// checkWebSocketOrigin accepts same-host and localhost origins.
func checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || isLocalOrigin(origin) {
		return true
	}
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	return host == r.Host
}
