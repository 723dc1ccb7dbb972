package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/lethe/internal/config"
	"github.com/lazypower/lethe/internal/engine"
	"github.com/lazypower/lethe/internal/retention"
	"github.com/lazypower/lethe/internal/store"
)

// Server is the lethe HTTP API server.
type Server struct {
	db      *store.DB
	eng     *engine.Engine
	router  chi.Router
	hub     *Hub
	limiter *ipLimiter
	version string
	started time.Time
	now     func() time.Time
}

// New creates a new Server over the engine's database. Engine events are
// streamed to websocket clients of /api/events.
func New(eng *engine.Engine, version string, rl config.RateLimitConfig) *Server {
	s := &Server{
		db:      eng.DB,
		eng:     eng,
		hub:     NewHub(),
		version: version,
		started: time.Now(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if rl.RPS > 0 {
		s.limiter = newIPLimiter(rl.RPS, rl.Burst)
	}
	eng.Subscribe(s.hub.Broadcast)
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	s.hub.Stop()
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/events", s.hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.middleware)
			}

			r.Get("/memory/health", s.handleMemoryHealth)
			r.Post("/analysis", s.handleAnalyze)
			r.Get("/analysis/runs", s.handleListRuns)
			r.Get("/scores", s.handleListScores)
			r.Get("/scores/{id}", s.handleGetScore)

			r.Get("/nodes", s.handleListNodes)
			r.Post("/nodes", s.handleCreateNode)
			r.Get("/nodes/{id}", s.handleGetNode)
			r.Post("/nodes/{id}/interactions", s.handleTouchNode)
			r.Post("/nodes/{id}/emotions", s.handleRecordEmotion)
			r.Post("/nodes/{id}/forget", s.handleForget)
			r.Post("/edges", s.handleLink)

			r.Get("/archive", s.handleListArchive)
			r.Post("/archive/{id}/recall", s.handleRecall)

			r.Get("/parameters", s.handleGetParameters)
			r.Put("/parameters", s.handleSetParameters)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"signal":  s.eng.Signal.Name(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// a 500 and gets logged.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve  *retention.ValidationError
		nf  *retention.NotFoundError
		aae *retention.AlreadyArchivedError
		nae *retention.NotArchivedError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &aae), errors.As(err, &nae), errors.Is(err, engine.ErrAnalysisInProgress):
		status = http.StatusConflict
	default:
		log.Printf("server: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
