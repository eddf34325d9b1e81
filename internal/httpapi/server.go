// Package httpapi exposes the judging and standings surface over HTTP:
// JSON endpoints for submitting and reading standings, and an SSE
// stream for live scoreboard updates.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/programme-lv/judge/internal/broadcast"
	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/scoreboard"
)

type Server struct {
	svc    *judge.Service
	board  *scoreboard.Engine
	stream *broadcast.Broadcaster
	events broadcast.Sink
	log    *slog.Logger
}

func NewServer(svc *judge.Service, board *scoreboard.Engine, stream *broadcast.Broadcaster, events broadcast.Sink, log *slog.Logger) *Server {
	return &Server{svc: svc, board: board, stream: stream, events: events, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/standings/contests/{contestID}", func(r chi.Router) {
		r.Get("/", s.getStandings)
		r.Get("/stream", s.streamStandings)
		r.Post("/row", s.postRowUpdate)
		r.Post("/finalize", s.postFinalize)
	})

	r.Route("/api/submissions", func(r chi.Router) {
		r.Post("/contests/{contestID}/problems/{problemID}/submit", s.postSubmit)
		r.Post("/problems/{problemID}/submit", s.postSubmit)
		r.Post("/run", s.postRun)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
