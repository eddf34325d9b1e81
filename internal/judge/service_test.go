package judge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/scoreboard"
)

type fakeProblems struct {
	prob Problem
	err  error
}

func (f *fakeProblems) Problem(context.Context, int64) (Problem, error) {
	return f.prob, f.err
}

type fakeContests struct {
	end time.Time
}

func (f *fakeContests) ContestEndTime(context.Context, int64) (time.Time, error) {
	return f.end, nil
}

type fakeContestMeta struct {
	start time.Time
	end   time.Time
}

func (f *fakeContestMeta) ContestMeta(context.Context, int64) (scoreboard.ContestMeta, error) {
	return scoreboard.ContestMeta{
		StartEpochMs: f.start.UnixMilli(),
		EndEpochMs:   f.end.UnixMilli(),
		ProblemIDs:   []int64{101},
	}, nil
}

type nullSnapshots struct{}

func (nullSnapshots) SaveSnapshot(context.Context, scoreboard.SnapshotRecord) error {
	return nil
}

func (nullSnapshots) LoadSnapshot(context.Context, int64) (scoreboard.SnapshotRecord, bool, error) {
	return scoreboard.SnapshotRecord{}, false, nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []api.StandingsEvent
}

func (c *capturedEvents) Publish(_ int64, ev api.StandingsEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func newTestService(t *testing.T, runner sandbox.Runner, contestEnd time.Time) (*Service, *capturedEvents) {
	t.Helper()
	log := testLogger()
	store := &recordingStore{}
	languages := DefaultRegistry()
	comparator := NewComparator(runner, log)
	pipeline := NewPipeline(comparator, store, languages, log)

	start := contestEnd.Add(-5 * time.Hour)
	board := scoreboard.NewEngine(&fakeContestMeta{start: start, end: contestEnd}, nullSnapshots{}, log)
	events := &capturedEvents{}

	svc := NewService(runner, pipeline, store, &fakeProblems{prob: Problem{ID: 101, TimeLimitMs: 2000, MemoryLimitKB: 262144}},
		&fakeContests{end: contestEnd}, board, events, languages, t.TempDir(), log)
	return svc, events
}

func TestSubmitForwardsContestResultToStandings(t *testing.T) {
	// empty SolutionPath: the pipeline auto-accepts without a sandbox
	svc, events := newTestService(t, &fakeRunner{}, time.Now().Add(time.Hour))

	sub, err := svc.Submit(context.Background(), SubmitInput{
		UserID: 7, Username: "alice", ProblemID: 101, ContestID: 1,
		Language: "cpp", Code: "int main() {}",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != StatusAccepted {
		t.Fatalf("status = %s", sub.Status)
	}
	if sub.SourcePath == "" {
		t.Error("submitted code must be stored on disk")
	}

	if len(events.events) != 1 {
		t.Fatalf("published %d events, want 1", len(events.events))
	}
	ev := events.events[0]
	if ev.Type != api.RowUpdateEvent || ev.Version != 1 {
		t.Errorf("event = %+v", ev)
	}
	if len(ev.Rows) != 1 || ev.Rows[0].Solved != 1 {
		t.Errorf("rows = %+v", ev.Rows)
	}
}

func TestSubmitAfterContestEndSkipsStandings(t *testing.T) {
	svc, events := newTestService(t, &fakeRunner{}, time.Now().Add(-time.Minute))

	if _, err := svc.Submit(context.Background(), SubmitInput{
		UserID: 7, Username: "alice", ProblemID: 101, ContestID: 1,
		Language: "cpp", Code: "int main() {}",
	}); err != nil {
		t.Fatal(err)
	}
	if len(events.events) != 0 {
		t.Fatalf("published %d events for a post-deadline submission", len(events.events))
	}
}

func TestSubmitOutsideContestSkipsStandings(t *testing.T) {
	svc, events := newTestService(t, &fakeRunner{}, time.Now().Add(time.Hour))

	if _, err := svc.Submit(context.Background(), SubmitInput{
		UserID: 7, Username: "alice", ProblemID: 101,
		Language: "cpp", Code: "int main() {}",
	}); err != nil {
		t.Fatal(err)
	}
	if len(events.events) != 0 {
		t.Fatalf("published %d events for a practice submission", len(events.events))
	}
}

func TestSubmitProblemLoadFailureReachesTerminalState(t *testing.T) {
	svc, events := newTestService(t, &fakeRunner{}, time.Now().Add(time.Hour))
	svc.problems = &fakeProblems{err: errors.New("problem store unavailable")}

	sub, err := svc.Submit(context.Background(), SubmitInput{
		UserID: 7, Username: "alice", ProblemID: 101, ContestID: 1,
		Language: "cpp", Code: "int main() {}",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != StatusRuntimeError {
		t.Fatalf("status = %s, want RUNTIME_ERROR", sub.Status)
	}
	if !strings.Contains(sub.Error, "failed to load problem") {
		t.Errorf("error = %q", sub.Error)
	}

	// the persisted record must end terminal, never stuck PENDING
	store := svc.store.(*recordingStore)
	final := store.saved[len(store.saved)-1]
	if final.Status != StatusRuntimeError {
		t.Errorf("final persisted status = %s, want RUNTIME_ERROR", final.Status)
	}

	// an orchestration fault is not a rejected attempt
	if len(events.events) != 0 {
		t.Errorf("published %d standings events for a judge-internal fault", len(events.events))
	}
}

func TestRunRejectsUnsupportedLanguage(t *testing.T) {
	svc, _ := newTestService(t, &fakeRunner{}, time.Now().Add(time.Hour))
	if _, err := svc.Run(context.Background(), "cobol", "code", ""); err == nil {
		t.Fatal("expected an error for an unsupported language")
	}
}
