package judge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/programme-lv/judge/internal/verdict"
)

// Pipeline drives one submission through a problem's generator cases
// and literal test cases, short-circuiting on the first failure, and
// persists every status transition so a crash mid-judging is observable
// as a stuck RUNNING submission rather than silently lost.
type Pipeline struct {
	comparator *Comparator
	store      SubmissionStore
	languages  Registry
	log        *slog.Logger
}

func NewPipeline(comparator *Comparator, store SubmissionStore, languages Registry, log *slog.Logger) *Pipeline {
	return &Pipeline{
		comparator: comparator,
		store:      store,
		languages:  languages,
		log:        log,
	}
}

// Judge evaluates the submission and leaves it in a terminal state. The
// returned verdict mirrors the final submission status; orchestration
// faults are folded into a RuntimeError so no submission stays RUNNING
// forever.
func (p *Pipeline) Judge(ctx context.Context, sub *Submission, prob Problem) (v verdict.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("judging panicked", "submission", sub.ID, "panic", r)
			v = verdict.New(verdict.RuntimeError, fmt.Sprintf("error during execution: %v", r))
		}
		p.finish(ctx, sub, v)
	}()

	if !p.languages.Supported(sub.Language) {
		return verdict.New(verdict.RuntimeError,
			fmt.Sprintf("unsupported language: %s", sub.Language))
	}

	sub.Status = StatusRunning
	if err := p.store.SaveSubmission(ctx, sub); err != nil {
		return verdict.New(verdict.RuntimeError,
			fmt.Sprintf("failed to persist submission state: %v", err))
	}

	if prob.SolutionPath == "" {
		// No reference solution configured: accepted by policy, with the
		// policy visible in the message.
		return verdict.New(verdict.Accepted, "no reference solution configured; accepted without judging")
	}
	if len(prob.Generators) == 0 && len(prob.TestFiles) == 0 {
		return verdict.New(verdict.Accepted, "no test cases configured; accepted without judging")
	}

	candidate := sub.SourcePath
	peakTime, peakMem := int64(-1), int64(-1)
	track := func(res verdict.Verdict) {
		peakTime = max(peakTime, res.TimeMillis)
		peakMem = max(peakMem, res.MemoryKB)
	}

	for _, gen := range prob.Generators {
		p.log.Debug("judging generator case", "submission", sub.ID, "generator", gen.ID)
		res := p.comparator.CompareOnGenerated(ctx, candidate, prob.SolutionPath, gen.Path,
			prob.TimeLimitMs, prob.MemoryLimitKB)
		track(res)
		if res.Kind != verdict.Accepted {
			return withPeaks(res, peakTime, peakMem)
		}
	}
	for _, tf := range prob.TestFiles {
		p.log.Debug("judging test file case", "submission", sub.ID, "test", tf.ID)
		res := p.comparator.CompareOnInputFile(ctx, candidate, prob.SolutionPath, tf.Path,
			prob.TimeLimitMs, prob.MemoryLimitKB)
		track(res)
		if res.Kind != verdict.Accepted {
			return withPeaks(res, peakTime, peakMem)
		}
	}

	return withPeaks(verdict.NewWithUsage(verdict.Accepted,
		fmt.Sprintf("Time: %dms, Memory: %dKB", peakTime, peakMem), peakTime, peakMem),
		peakTime, peakMem)
}

// finish records the terminal status and peak usage. A persistence
// failure here is logged, not surfaced: the verdict is already decided.
func (p *Pipeline) finish(ctx context.Context, sub *Submission, v verdict.Verdict) {
	sub.Status = statusOf(v.Kind)
	sub.TimeMillis = v.TimeMillis
	sub.MemoryKB = v.MemoryKB
	if v.Kind != verdict.Accepted {
		sub.Error = v.Message
	}
	if err := p.store.SaveSubmission(ctx, sub); err != nil {
		p.log.Error("failed to persist final submission state",
			"submission", sub.ID, "status", sub.Status, "error", err)
	}
}

func withPeaks(v verdict.Verdict, peakTime, peakMem int64) verdict.Verdict {
	v.TimeMillis = peakTime
	v.MemoryKB = peakMem
	return v
}
