package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lazypower/lethe/internal/retention"
	"github.com/lazypower/lethe/internal/store"
)

func (s *Server) handleMemoryHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.HealthStats())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, err := s.eng.Analyze(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("auto_forget") == "true" {
		forgotten, err := s.eng.AutoForget(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"run":       report.Run,
			"forgotten": forgotten,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": report.Run})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.db.ListAnalysisRuns(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	scores := s.eng.Scores()
	if r.URL.Query().Get("candidates") == "true" {
		scores = s.eng.Candidates()
	}
	if scores == nil {
		scores = []retention.RetentionScore{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scores":      scores,
		"analyzed_at": s.eng.HealthStats().AnalyzedAt,
	})
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rs, ok := s.eng.ScoreOf(id)
	if !ok {
		writeError(w, &retention.NotFoundError{ID: id})
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.db.ListNodes()
	if err != nil {
		writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []retention.Node{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string    `json:"id"`
		Content   string    `json:"content"`
		Type      string    `json:"type"`
		Pinned    bool      `json:"pinned"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := store.CheckTime("created_at", req.CreatedAt); err != nil {
		writeError(w, err)
		return
	}

	n := &retention.Node{
		ID:        req.ID,
		Content:   req.Content,
		Type:      req.Type,
		Pinned:    req.Pinned,
		CreatedAt: req.CreatedAt,
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if err := s.db.CreateNode(n); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.db.GetNode(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if n == nil {
		writeError(w, &retention.NotFoundError{ID: id})
		return
	}

	resp := map[string]any{"node": n}
	if rs, ok := s.eng.ScoreOf(id); ok {
		resp["score"] = rs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTouchNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if !retention.ValidInteraction(req.Kind) {
		badRequest(w, "kind must be one of edit, select, connect, view")
		return
	}
	if err := s.db.TouchNode(id, req.Kind, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleRecordEmotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Intensity *float64 `json:"intensity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Intensity == nil {
		badRequest(w, "intensity required")
		return
	}
	if err := s.db.RecordEmotion(id, *req.Intensity, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Source == "" || req.Target == "" {
		badRequest(w, "source and target required")
		return
	}
	if req.Source == req.Target {
		badRequest(w, "a node cannot link to itself")
		return
	}
	if err := s.db.Link(req.Source, req.Target, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid json")
		return
	}
	f, err := s.eng.Forget(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	entries := s.eng.Archive()
	if entries == nil {
		entries = []retention.ForgottenNode{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"archive":  entries,
		"capacity": s.eng.Parameters().MaxForgottenNodes,
	})
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	n, err := s.eng.Recall(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Parameters())
}

// handleSetParameters applies a partial update: omitted fields keep their
// current value.
func (s *Server) handleSetParameters(w http.ResponseWriter, r *http.Request) {
	p := s.eng.Parameters()
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := s.eng.SetParameters(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Parameters())
}
