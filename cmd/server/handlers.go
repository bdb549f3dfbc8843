package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pagefold/trackd/internal/course"
	"github.com/pagefold/trackd/internal/export"
	"github.com/pagefold/trackd/internal/progress"
	"github.com/pagefold/trackd/internal/syncfeed"
)

// server holds handler dependencies.
type server struct {
	tracker *progress.Tracker
	catalog *course.Catalog // may be nil
	hub     *syncfeed.Hub
}

// newMux creates the HTTP router.
func newMux(s *server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz)

	mux.HandleFunc("GET /progress", s.handleGetProgress)
	mux.HandleFunc("POST /progress/complete", s.handleComplete)
	mux.HandleFunc("POST /progress/toggle", s.handleToggle)
	mux.HandleFunc("POST /progress/quiz", s.handleQuiz)
	mux.HandleFunc("POST /progress/visited", s.handleVisited)
	mux.HandleFunc("POST /progress/reset", s.handleReset)
	mux.HandleFunc("GET /progress/phase", s.handlePhase)
	mux.HandleFunc("GET /progress/export", s.handleExport)
	mux.HandleFunc("POST /identity", s.handleIdentity)
	mux.HandleFunc("GET /sync/feed", s.hub.Handler)

	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (s *server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

type unitRequest struct {
	UnitID int `json:"unit_id"`
}

func (s *server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UnitID <= 0 {
		writeError(w, http.StatusBadRequest, "unit_id must be positive")
		return
	}
	s.tracker.MarkComplete(req.UnitID)
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UnitID <= 0 {
		writeError(w, http.StatusBadRequest, "unit_id must be positive")
		return
	}
	s.tracker.ToggleComplete(req.UnitID)
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

type quizRequest struct {
	UnitID         int  `json:"unit_id"`
	Score          int  `json:"score"`
	TotalQuestions int  `json:"total_questions"`
	Passed         bool `json:"passed"`
}

func (s *server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UnitID <= 0 {
		writeError(w, http.StatusBadRequest, "unit_id must be positive")
		return
	}
	if req.Score < 0 {
		writeError(w, http.StatusBadRequest, "score must not be negative")
		return
	}
	if req.TotalQuestions <= 0 {
		writeError(w, http.StatusBadRequest, "total_questions must be positive")
		return
	}
	s.tracker.RecordQuizScore(req.UnitID, req.Score, req.TotalQuestions, req.Passed)
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

type visitedRequest struct {
	UnitID  int    `json:"unit_id"`
	Section string `json:"section,omitempty"`
}

func (s *server) handleVisited(w http.ResponseWriter, r *http.Request) {
	var req visitedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UnitID <= 0 {
		writeError(w, http.StatusBadRequest, "unit_id must be positive")
		return
	}
	s.tracker.RecordLastVisited(req.UnitID, req.Section)
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.tracker.Reset()
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *server) handlePhase(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusNotFound, "no course catalog loaded")
		return
	}
	units := s.catalog.PhaseUnits(name)
	if len(units) == 0 {
		writeError(w, http.StatusNotFound, "unknown phase")
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.PhaseProgress(units))
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc := s.tracker.Document()
	totalUnits := 0
	if s.catalog != nil {
		totalUnits = s.catalog.TotalUnits()
	}
	if totalUnits == 0 {
		totalUnits = len(doc.CompletedChapters)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="progress.xlsx"`)
	if err := export.Write(w, doc, s.catalog, totalUnits); err != nil {
		slog.Error("progress export failed", "error", err)
	}
}

type identityRequest struct {
	UserID string `json:"user_id"`
}

func (s *server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.tracker.SetIdentity(r.Context(), req.UserID)
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
