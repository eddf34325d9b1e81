package judge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

// Comparator judges one candidate program against the reference
// solution on one concrete input. The comparison is exact equality of
// trimmed stdout; no whitespace-insensitive or float-tolerant mode.
type Comparator struct {
	runner sandbox.Runner
	log    *slog.Logger
}

func NewComparator(runner sandbox.Runner, log *slog.Logger) *Comparator {
	return &Comparator{runner: runner, log: log}
}

// CompareOnInputFile judges the candidate against the reference on a
// literal, pre-stored input file.
func (c *Comparator) CompareOnInputFile(ctx context.Context, candidatePath, solutionPath, inputPath string, timeLimitMs, memoryLimitKB int64) verdict.Verdict {
	sources, v, ok := readSources(candidatePath, solutionPath, inputPath)
	if !ok {
		return v
	}
	return c.compareOnInput(ctx, sources[0], sources[1], sources[2], timeLimitMs, memoryLimitKB)
}

// CompareOnGenerated runs the generator with no input, captures its
// stdout as the synthesized test input and judges on that. A failing
// generator is a judge-internal fault, never blamed on the candidate.
func (c *Comparator) CompareOnGenerated(ctx context.Context, candidatePath, solutionPath, generatorPath string, timeLimitMs, memoryLimitKB int64) verdict.Verdict {
	sources, v, ok := readSources(candidatePath, solutionPath, generatorPath)
	if !ok {
		return v
	}

	gen, err := c.runner.Run(ctx, sandbox.ExecutionRequest{
		Code:          sources[2],
		TimeLimitMs:   timeLimitMs,
		MemoryLimitKB: memoryLimitKB,
		CPUCores:      1.0,
	})
	if err != nil {
		return verdict.New(verdict.RuntimeError, fmt.Sprintf("generator failed to start: %v", err))
	}
	if gen.ExitCode != 0 {
		return verdict.NewWithUsage(verdict.RuntimeError,
			"generator failed: "+gen.Stderr, gen.TimeMillis, gen.MemoryKB)
	}

	return c.compareOnInput(ctx, sources[0], sources[1], gen.Stdout, timeLimitMs, memoryLimitKB)
}

// compareOnInput runs the reference first: a failing reference is a
// broken problem setup and surfaces as a fault of the "main solution".
func (c *Comparator) compareOnInput(ctx context.Context, candidate, solution, input string, timeLimitMs, memoryLimitKB int64) verdict.Verdict {
	main, err := c.runner.Run(ctx, sandbox.ExecutionRequest{
		Code:          solution,
		Stdin:         input,
		TimeLimitMs:   timeLimitMs,
		MemoryLimitKB: memoryLimitKB,
		CPUCores:      1.0,
	})
	if err != nil {
		return verdict.New(verdict.RuntimeError, fmt.Sprintf("main solution failed to start: %v", err))
	}
	if main.ExitCode != 0 {
		return verdict.Classify("main solution", main, timeLimitMs, memoryLimitKB)
	}
	expected := strings.TrimSpace(main.Stdout)

	cand, err := c.runner.Run(ctx, sandbox.ExecutionRequest{
		Code:          candidate,
		Stdin:         input,
		TimeLimitMs:   timeLimitMs,
		MemoryLimitKB: memoryLimitKB,
		CPUCores:      1.0,
	})
	if err != nil {
		return verdict.New(verdict.RuntimeError, fmt.Sprintf("submission failed to start: %v", err))
	}
	if cand.ExitCode != 0 {
		return verdict.Classify("submission", cand, timeLimitMs, memoryLimitKB)
	}

	if strings.TrimSpace(cand.Stdout) == expected {
		msg := fmt.Sprintf("Time: %dms, Memory: %dKB", cand.TimeMillis, cand.MemoryKB)
		return verdict.NewWithUsage(verdict.Accepted, msg, cand.TimeMillis, cand.MemoryKB)
	}
	return verdict.NewWithUsage(verdict.WrongAnswer,
		"expected output and actual output differ", cand.TimeMillis, cand.MemoryKB)
}

// readSources loads the three asset files for a comparison. A missing
// or unreadable asset is a judge-internal RuntimeError.
func readSources(paths ...string) ([]string, verdict.Verdict, bool) {
	out := make([]string, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			v := verdict.New(verdict.RuntimeError, "one or more required files not found")
			return nil, v, false
		}
		out[i] = string(data)
	}
	return out, verdict.Verdict{}, true
}
