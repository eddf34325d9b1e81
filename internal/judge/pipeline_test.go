package judge

import (
	"context"
	"strings"
	"testing"

	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

// recordingStore captures every persisted submission state.
type recordingStore struct {
	saved []Submission
}

func (r *recordingStore) SaveSubmission(_ context.Context, s *Submission) error {
	r.saved = append(r.saved, *s)
	return nil
}

func newTestPipeline(runner sandbox.Runner) (*Pipeline, *recordingStore) {
	store := &recordingStore{}
	comparator := NewComparator(runner, testLogger())
	return NewPipeline(comparator, store, DefaultRegistry(), testLogger()), store
}

func testProblem(t *testing.T, generators, testFiles int) Problem {
	t.Helper()
	dir := t.TempDir()
	prob := Problem{
		ID:            1,
		TimeLimitMs:   2000,
		MemoryLimitKB: 262144,
		SolutionPath:  writeFile(t, dir, "sol.cpp", "solution"),
	}
	for i := 0; i < generators; i++ {
		prob.Generators = append(prob.Generators, Generator{ID: i, Path: writeFile(t, dir, "gen.cpp", "generator")})
	}
	for i := 0; i < testFiles; i++ {
		prob.TestFiles = append(prob.TestFiles, TestFile{ID: i, Path: writeFile(t, dir, "input.txt", "1 2")})
	}
	return prob
}

func testSubmission(t *testing.T) *Submission {
	t.Helper()
	return &Submission{
		ID:         "sub-1",
		Language:   "cpp",
		SourcePath: writeFile(t, t.TempDir(), "cand.cpp", "candidate"),
		Status:     StatusPending,
		TimeMillis: -1,
		MemoryKB:   -1,
	}
}

func TestJudgeAcceptedTracksPeaks(t *testing.T) {
	runner := &fakeRunner{results: map[string]sandbox.ExecutionResult{
		"generator": {ExitCode: 0, Stdout: "5 7", TimeMillis: 1, MemoryKB: 10},
		"solution":  {ExitCode: 0, Stdout: "12", TimeMillis: 5, MemoryKB: 50},
		"candidate": {ExitCode: 0, Stdout: "12", TimeMillis: 30, MemoryKB: 900},
	}}
	p, store := newTestPipeline(runner)
	sub := testSubmission(t)

	v := p.Judge(context.Background(), sub, testProblem(t, 1, 1))
	if v.Kind != verdict.Accepted {
		t.Fatalf("kind = %v (%s)", v.Kind, v.Message)
	}
	if sub.Status != StatusAccepted {
		t.Errorf("status = %s, want ACCEPTED", sub.Status)
	}
	if sub.TimeMillis != 30 || sub.MemoryKB != 900 {
		t.Errorf("peaks = (%d, %d), want (30, 900)", sub.TimeMillis, sub.MemoryKB)
	}

	// PENDING -> RUNNING -> terminal, both transitions persisted
	if len(store.saved) != 2 {
		t.Fatalf("saved %d states, want 2", len(store.saved))
	}
	if store.saved[0].Status != StatusRunning {
		t.Errorf("first saved status = %s, want RUNNING", store.saved[0].Status)
	}
	if store.saved[1].Status != StatusAccepted {
		t.Errorf("final saved status = %s, want ACCEPTED", store.saved[1].Status)
	}
}

func TestJudgeShortCircuitsOnFirstFailure(t *testing.T) {
	calls := 0
	runner := runnerFunc(func(_ context.Context, req sandbox.ExecutionRequest) (sandbox.ExecutionResult, error) {
		calls++
		if req.Code == "solution" {
			return sandbox.ExecutionResult{ExitCode: 0, Stdout: "12"}, nil
		}
		return sandbox.ExecutionResult{ExitCode: 0, Stdout: "wrong", TimeMillis: 2, MemoryKB: 20}, nil
	})
	p, _ := newTestPipeline(runner)
	sub := testSubmission(t)

	v := p.Judge(context.Background(), sub, testProblem(t, 0, 3))
	if v.Kind != verdict.WrongAnswer {
		t.Fatalf("kind = %v, want WrongAnswer", v.Kind)
	}
	// one solution run plus one candidate run; the remaining two test
	// files are never evaluated
	if calls != 2 {
		t.Errorf("runner called %d times, want 2", calls)
	}
	if sub.Status != StatusWrongAnswer {
		t.Errorf("status = %s, want WRONG_ANSWER", sub.Status)
	}
}

func TestJudgeUnsupportedLanguage(t *testing.T) {
	p, store := newTestPipeline(&fakeRunner{})
	sub := testSubmission(t)
	sub.Language = "brainfuck"

	v := p.Judge(context.Background(), sub, testProblem(t, 0, 1))
	if v.Kind != verdict.RuntimeError {
		t.Fatalf("kind = %v, want RuntimeError", v.Kind)
	}
	if sub.Status != StatusRuntimeError {
		t.Errorf("status = %s", sub.Status)
	}
	// no RUNNING state: rejected before the sandbox
	for _, s := range store.saved {
		if s.Status == StatusRunning {
			t.Error("submission must not enter RUNNING for an unsupported language")
		}
	}
}

func TestJudgeNoReferenceSolutionAutoAccepts(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{})
	sub := testSubmission(t)
	prob := testProblem(t, 0, 1)
	prob.SolutionPath = ""

	v := p.Judge(context.Background(), sub, prob)
	if v.Kind != verdict.Accepted {
		t.Fatalf("kind = %v, want Accepted", v.Kind)
	}
	if sub.Status != StatusAccepted {
		t.Errorf("status = %s", sub.Status)
	}
}

func TestJudgeNoTestCasesAcceptsWithNote(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{})
	sub := testSubmission(t)

	v := p.Judge(context.Background(), sub, testProblem(t, 0, 0))
	if v.Kind != verdict.Accepted {
		t.Fatalf("kind = %v, want Accepted", v.Kind)
	}
	if !strings.Contains(v.Message, "no test cases configured") {
		t.Errorf("message = %q, want the no-tests note, not bogus usage figures", v.Message)
	}
}

func TestJudgeFoldsPanicIntoRuntimeError(t *testing.T) {
	runner := runnerFunc(func(context.Context, sandbox.ExecutionRequest) (sandbox.ExecutionResult, error) {
		panic("sandbox exploded")
	})
	p, store := newTestPipeline(runner)
	sub := testSubmission(t)

	v := p.Judge(context.Background(), sub, testProblem(t, 0, 1))
	if v.Kind != verdict.RuntimeError {
		t.Fatalf("kind = %v, want RuntimeError", v.Kind)
	}
	final := store.saved[len(store.saved)-1]
	if final.Status != StatusRuntimeError {
		t.Errorf("final saved status = %s, want RUNTIME_ERROR", final.Status)
	}
}

type runnerFunc func(context.Context, sandbox.ExecutionRequest) (sandbox.ExecutionResult, error)

func (f runnerFunc) Run(ctx context.Context, req sandbox.ExecutionRequest) (sandbox.ExecutionResult, error) {
	return f(ctx, req)
}
