package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/judge"
)

// postSubmit judges a submission synchronously and returns its terminal
// state. The contest id is absent on the practice route, which leaves
// the scoreboard untouched.
func (s *Server) postSubmit(w http.ResponseWriter, r *http.Request) {
	problemID, err := strconv.ParseInt(chi.URLParam(r, "problemID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem id")
		return
	}
	var contestID int64
	if raw := chi.URLParam(r, "contestID"); raw != "" {
		if contestID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid contest id")
			return
		}
	}

	var req api.SubmitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code must not be empty")
		return
	}

	sub, err := s.svc.Submit(r.Context(), judge.SubmitInput{
		UserID:    req.UserID,
		Username:  req.Username,
		ProblemID: problemID,
		ContestID: contestID,
		Language:  req.Language,
		Code:      req.Code,
	})
	if err != nil {
		s.log.Error("submission failed", "problem", problemID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to judge submission")
		return
	}

	writeJSON(w, http.StatusOK, api.SubmitResp{
		SubmissionID: sub.ID,
		Status:       string(sub.Status),
		TimeMillis:   sub.TimeMillis,
		MemoryKB:     sub.MemoryKB,
		Message:      sub.Error,
	})
}

// postRun executes code against a caller-provided stdin with fixed
// limits, without touching any problem or scoreboard.
func (s *Server) postRun(w http.ResponseWriter, r *http.Request) {
	var req api.RunReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code must not be empty")
		return
	}

	res, err := s.svc.Run(r.Context(), req.Language, req.Code, req.Stdin)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, api.RunResp{
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		TimeMillis: res.TimeMillis,
		MemoryKB:   res.MemoryKB,
	})
}
