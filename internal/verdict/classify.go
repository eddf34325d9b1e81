package verdict

import (
	"fmt"
	"strings"

	"github.com/programme-lv/judge/internal/sandbox"
)

const maxDiagnosticLines = 40

// compiler and linker markers in diagnostic output
var compileMarkers = []string{
	"error:",
	"fatal error:",
	"g++: ",
	"collect2: error",
	"undefined reference to",
	"multiple definition of",
	"ld: ",
}

// Classify maps a failed execution to a verdict. The order is policy,
// not incident: a compile failure never produces usage telemetry, so the
// compilation check runs before any time/memory heuristic, and the
// OOM-kill markers are checked independently of elapsed time because a
// memory-killed process can look timed out from the outside.
//
// who labels the program that failed ("main solution" or "submission")
// so judge-internal faults stay distinguishable from candidate faults.
func Classify(who string, r sandbox.ExecutionResult, timeLimitMs, memoryLimitKB int64) Verdict {
	if r.TimeMillis < 0 && r.MemoryKB < 0 && hasCompileMarkers(r.Stderr) {
		msg := fmt.Sprintf("%s compilation failed:\n%s", who, firstLines(r.Stderr, maxDiagnosticLines))
		return NewWithUsage(CompilationError, msg, r.TimeMillis, r.MemoryKB)
	}

	if r.ExitCode == sandbox.ExitTimeout || (r.TimeMillis >= 0 && r.TimeMillis >= timeLimitMs) {
		msg := fmt.Sprintf("%s time limit exceeded: %dms", who, timeLimitMs)
		return NewWithUsage(TimeLimitExceeded, msg, r.TimeMillis, r.MemoryKB)
	}

	if r.ExitCode == sandbox.ExitOOMKilled || strings.Contains(r.Stderr, "Killed") {
		msg := fmt.Sprintf("%s memory limit exceeded: %dKB", who, memoryLimitKB)
		return NewWithUsage(MemoryLimitExceeded, msg, r.TimeMillis, r.MemoryKB)
	}

	// measured-RSS fallback, without a kill signal
	if r.MemoryKB >= 0 && r.MemoryKB >= memoryLimitKB {
		msg := fmt.Sprintf("%s memory usage %dKB exceeded limit %dKB", who, r.MemoryKB, memoryLimitKB)
		return NewWithUsage(MemoryLimitExceeded, msg, r.TimeMillis, r.MemoryKB)
	}

	detail := strings.TrimSpace(r.Stderr)
	if detail == "" {
		detail = fmt.Sprintf("exit code %d", r.ExitCode)
	}
	msg := fmt.Sprintf("%s runtime error: %s", who, detail)
	return NewWithUsage(RuntimeError, msg, r.TimeMillis, r.MemoryKB)
}

func hasCompileMarkers(diag string) bool {
	d := strings.ToLower(diag)
	for _, marker := range compileMarkers {
		if strings.Contains(d, marker) {
			return true
		}
	}
	return false
}

// firstLines keeps the first maxLines of s, appending a truncation
// marker when more follow.
func firstLines(s string, maxLines int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return strings.TrimSpace(s)
	}
	out := strings.Join(lines[:maxLines], "\n") + "\n... (truncated)"
	return strings.TrimSpace(out)
}
