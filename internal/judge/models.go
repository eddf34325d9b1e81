package judge

import (
	"context"
	"time"

	"github.com/programme-lv/judge/internal/verdict"
)

// Status is the lifecycle state of a submission. Transitions are
// monotone: PENDING -> RUNNING -> one terminal verdict, never back.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusRunning             Status = "RUNNING"
	StatusAccepted            Status = "ACCEPTED"
	StatusWrongAnswer         Status = "WRONG_ANSWER"
	StatusTimeLimitExceeded   Status = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded Status = "MEMORY_LIMIT_EXCEEDED"
	StatusCompilationError    Status = "COMPILATION_ERROR"
	StatusRuntimeError        Status = "RUNTIME_ERROR"
)

func statusOf(k verdict.Kind) Status {
	switch k {
	case verdict.Accepted:
		return StatusAccepted
	case verdict.WrongAnswer:
		return StatusWrongAnswer
	case verdict.TimeLimitExceeded:
		return StatusTimeLimitExceeded
	case verdict.MemoryLimitExceeded:
		return StatusMemoryLimitExceeded
	case verdict.CompilationError:
		return StatusCompilationError
	}
	return StatusRuntimeError
}

// Submission is one judging attempt. TimeMillis and MemoryKB hold the
// peak usage observed across all evaluated tests.
type Submission struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ProblemID int64  `json:"problem_id"`
	ContestID int64  `json:"contest_id"` // 0 outside of contests
	Language  string `json:"language"`

	// SourcePath is where the submitted code was stored on disk.
	SourcePath string    `json:"source_path"`
	CreatedAt  time.Time `json:"created_at"`

	Status     Status `json:"status"`
	TimeMillis int64  `json:"time_ms"`
	MemoryKB   int64  `json:"mem_kb"`
	Error      string `json:"error,omitempty"`
}

// Generator is a program that emits a test input on stdout.
type Generator struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// TestFile is a literal, pre-stored test input.
type TestFile struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// Problem carries the judging assets of one problem. An empty
// SolutionPath means the problem cannot be auto-judged.
type Problem struct {
	ID            int64  `json:"id"`
	TimeLimitMs   int64  `json:"time_limit_ms"`
	MemoryLimitKB int64  `json:"memory_limit_kb"`
	SolutionPath  string `json:"solution_path"`

	Generators []Generator `json:"generators"`
	TestFiles  []TestFile  `json:"test_files"`
}

// SubmissionStore persists submission state transitions.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, s *Submission) error
}

// ProblemSource resolves a problem's judging assets.
type ProblemSource interface {
	Problem(ctx context.Context, id int64) (Problem, error)
}

// ContestSource resolves contest end times for the scoreboard cutoff.
type ContestSource interface {
	ContestEndTime(ctx context.Context, id int64) (time.Time, error)
}
