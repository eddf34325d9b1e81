package judge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/broadcast"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/scoreboard"
	"github.com/programme-lv/judge/internal/verdict"
)

// limits for ad-hoc runs outside of any problem
const (
	adhocTimeLimitMs   = 2000
	adhocMemoryLimitKB = 256 * 1024
)

// SubmitInput is one submission job, whether it arrived over HTTP or
// from the intake queue.
type SubmitInput struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ProblemID int64  `json:"problem_id"`
	ContestID int64  `json:"contest_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

// Service glues the judging pipeline to the scoreboard: it persists the
// submission, judges it, and forwards contest results that landed before
// the contest end to the standings.
type Service struct {
	runner    sandbox.Runner
	pipeline  *Pipeline
	store     SubmissionStore
	problems  ProblemSource
	contests  ContestSource
	board     *scoreboard.Engine
	events    broadcast.Sink
	languages Registry

	submissionsDir string
	now            func() time.Time
	log            *slog.Logger
}

func NewService(
	runner sandbox.Runner,
	pipeline *Pipeline,
	store SubmissionStore,
	problems ProblemSource,
	contests ContestSource,
	board *scoreboard.Engine,
	events broadcast.Sink,
	languages Registry,
	submissionsDir string,
	log *slog.Logger,
) *Service {
	return &Service{
		runner:         runner,
		pipeline:       pipeline,
		store:          store,
		problems:       problems,
		contests:       contests,
		board:          board,
		events:         events,
		languages:      languages,
		submissionsDir: submissionsDir,
		now:            time.Now,
		log:            log,
	}
}

// Submit stores and judges one submission to a terminal state. For
// contest submissions accepted or rejected before the contest end, the
// scoreboard row is updated and the new version broadcast.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Submission, error) {
	sub := &Submission{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Username:   in.Username,
		ProblemID:  in.ProblemID,
		ContestID:  in.ContestID,
		Language:   in.Language,
		CreatedAt:  s.now(),
		Status:     StatusPending,
		TimeMillis: -1,
		MemoryKB:   -1,
	}

	path, err := s.storeSource(sub, in.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to store submission source: %w", err)
	}
	sub.SourcePath = path
	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	prob, err := s.problems.Problem(ctx, in.ProblemID)
	if err != nil {
		// a judge-internal fault, not the submitter's: finish terminally
		// instead of stranding the record in PENDING
		s.fail(ctx, sub, fmt.Sprintf("failed to load problem %d: %v", in.ProblemID, err))
		return sub, nil
	}

	v := s.pipeline.Judge(ctx, sub, prob)
	s.log.Info("submission judged",
		"submission", sub.ID, "user", sub.UserID, "problem", sub.ProblemID,
		"status", sub.Status, "time_ms", sub.TimeMillis, "mem_kb", sub.MemoryKB)

	if sub.ContestID != 0 {
		s.forwardToStandings(ctx, sub, v.Kind == verdict.Accepted)
	}
	return sub, nil
}

// Run executes code on a provided stdin with fixed limits, outside of
// any problem. Used by the ad-hoc run endpoint.
func (s *Service) Run(ctx context.Context, lang, code, stdin string) (sandbox.ExecutionResult, error) {
	if !s.languages.Supported(lang) {
		return sandbox.ExecutionResult{}, fmt.Errorf("unsupported language: %s", lang)
	}
	return s.runner.Run(ctx, sandbox.ExecutionRequest{
		Code:          code,
		Stdin:         stdin,
		TimeLimitMs:   adhocTimeLimitMs,
		MemoryLimitKB: adhocMemoryLimitKB,
		CPUCores:      1.0,
	})
}

// fail moves a submission to a terminal RuntimeError without judging.
// The scoreboard is left untouched: an orchestration fault must not
// count as a rejected attempt.
func (s *Service) fail(ctx context.Context, sub *Submission, msg string) {
	sub.Status = StatusRuntimeError
	sub.Error = msg
	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		s.log.Error("failed to persist failed submission",
			"submission", sub.ID, "error", err)
	}
	s.log.Warn("submission failed before judging", "submission", sub.ID, "error", msg)
}

// forwardToStandings updates the contest scoreboard, but only for
// submissions that landed before the contest end.
func (s *Service) forwardToStandings(ctx context.Context, sub *Submission, accepted bool) {
	end, err := s.contests.ContestEndTime(ctx, sub.ContestID)
	if err != nil {
		s.log.Warn("failed to resolve contest end time",
			"contest", sub.ContestID, "error", err)
		return
	}
	if !sub.CreatedAt.Before(end) {
		return
	}

	version, row, changed := s.board.RecordSubmissionResult(ctx,
		sub.ContestID, sub.ProblemID, sub.UserID, sub.Username, accepted, sub.CreatedAt)
	if !changed {
		return
	}
	s.events.Publish(sub.ContestID, api.StandingsEvent{
		Type:      api.RowUpdateEvent,
		ContestID: sub.ContestID,
		Version:   version,
		Rows:      []api.StandingRow{row},
	})
}

// storeSource writes the submitted code next to the other submissions,
// named so collisions are impossible and the origin is greppable.
func (s *Service) storeSource(sub *Submission, code string) (string, error) {
	if err := os.MkdirAll(s.submissionsDir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d_%d_%s_%s.%s",
		sub.UserID, sub.ProblemID,
		sub.CreatedAt.Format("20060102_150405"),
		sub.ID[:8], sub.Language)
	path := filepath.Join(s.submissionsDir, name)
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return "", err
	}
	return path, nil
}
