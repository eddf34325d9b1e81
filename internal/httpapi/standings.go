package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/programme-lv/judge/api"
)

// getStandings serves the current snapshot with a version-derived ETag
// so pollers holding the latest version get a cheap 304 instead of the
// full payload.
func (s *Server) getStandings(w http.ResponseWriter, r *http.Request) {
	contestID, ok := contestParam(w, r)
	if !ok {
		return
	}
	snap := s.board.Snapshot(r.Context(), contestID)

	etag := fmt.Sprintf(`"%d"`, snap.Version)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-store")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// streamStandings holds an SSE connection open, pushing every standings
// event for the contest until the client disconnects.
func (s *Server) streamStandings(w http.ResponseWriter, r *http.Request) {
	contestID, ok := contestParam(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 5000\n\n")
	flusher.Flush()

	sub := s.stream.Register(contestID)
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("failed to encode standings event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

// postRowUpdate lets an external rejudge or import push a whole row.
func (s *Server) postRowUpdate(w http.ResponseWriter, r *http.Request) {
	contestID, ok := contestParam(w, r)
	if !ok {
		return
	}
	var body struct {
		ProblemIDs []int64         `json:"problem_ids"`
		Row        api.StandingRow `json:"row"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	version := s.board.ApplyRowUpdate(r.Context(), contestID, body.ProblemIDs, body.Row)
	s.events.Publish(contestID, api.StandingsEvent{
		Type:      api.RowUpdateEvent,
		ContestID: contestID,
		Version:   version,
		Rows:      []api.StandingRow{body.Row},
	})
	writeJSON(w, http.StatusOK, map[string]int64{"version": version})
}

func (s *Server) postFinalize(w http.ResponseWriter, r *http.Request) {
	contestID, ok := contestParam(w, r)
	if !ok {
		return
	}
	finalized, version := s.board.FinalizeIfEnded(r.Context(), contestID)
	if finalized {
		s.events.Publish(contestID, api.StandingsEvent{
			Type:      api.FinalizedEvent,
			ContestID: contestID,
			Version:   version,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"finalized": finalized, "version": version})
}

func contestParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "contestID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contest id")
		return 0, false
	}
	return id, true
}
