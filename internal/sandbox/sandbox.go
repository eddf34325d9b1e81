package sandbox

import "context"

// Exit codes reported by the sandbox for resource kills. 124 is the
// coreutils timeout sentinel, 137 is SIGKILL (cgroup OOM kill).
const (
	ExitTimeout   = 124
	ExitOOMKilled = 137
)

// ExecutionRequest describes one compile+run attempt of untrusted code.
// Created per attempt, never reused.
type ExecutionRequest struct {
	Code  string
	Stdin string

	TimeLimitMs   int64
	MemoryLimitKB int64
	CPUCores      float64
}

// ExecutionResult is what the sandbox produced. TimeMillis and MemoryKB
// are -1 when no usage telemetry was recovered (e.g. compile failure or
// forced kill). Stderr has the usage markers already stripped.
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string

	TimeMillis int64
	MemoryKB   int64
}

// Runner executes a request inside an isolated, resource-limited
// environment. Process-level faults (timeout, kill, stream errors) are
// folded into the result; an error is returned only when the sandbox
// itself could not be set up.
type Runner interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}
