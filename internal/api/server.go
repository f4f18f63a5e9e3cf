// Package api is the engine's minimal external HTTP surface: process
// status, a manual kill switch trigger, and a manifest reload check (spec.md
// §4's status-reporting needs), structured the way the teacher's
// internal/server wired chi + cors + its own request logging middleware.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/strikewindow/internal/config"
)

// StatusProvider reports the engine's current health for GET /api/status.
type StatusProvider interface {
	Mode() string
	AutoStopTripped() bool
	InflightOrderCount() int
}

// KillSwitch is the subset of internal/safety.KillSwitch the API needs.
type KillSwitch interface {
	Trigger(done <-chan struct{})
}

// ManifestReloader loads and validates a candidate launch manifest for
// POST /api/manifest/reload. The server only reports the result; it does
// not swap the manifest into the running process.
type ManifestReloader interface {
	Reload(path string) (*config.LaunchManifest, error)
}

// Config holds the HTTP server's dependencies.
type Config struct {
	Port     int
	Log      zerolog.Logger
	Status   StatusProvider
	Kill     KillSwitch
	Manifest ManifestReloader
	DevMode  bool
}

// Server is the chi-routed status/kill/manifest-reload surface.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	status StatusProvider
	kill   KillSwitch
	manifest ManifestReloader
}

// New builds a ready Server; call Start to begin listening.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "api").Logger(),
		status:   cfg.Status,
		kill:     cfg.Kill,
		manifest: cfg.Manifest,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/kill", s.handleKill)
		r.Post("/manifest/reload", s.handleManifestReload)
	})
}

// Start begins listening; it blocks until the server stops or errors.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, per ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":                 s.status.Mode(),
		"auto_stop_tripped":    s.status.AutoStopTripped(),
		"inflight_order_count": s.status.InflightOrderCount(),
	})
}

// handleKill manually trips the kill switch (an operator panic button, in
// addition to the safety layer's automatic trip). It writes the 202
// response first and then triggers the kill switch on its own goroutine.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	s.log.Warn().Msg("kill switch triggered via API")
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "terminating"})
	go s.kill.Trigger(make(chan struct{}))
}

type manifestReloadRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleManifestReload(w http.ResponseWriter, r *http.Request) {
	var req manifestReloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "path is required"})
		return
	}

	m, err := s.manifest.Reload(req.Path)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
