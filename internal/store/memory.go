package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/scoreboard"
)

// Memory keeps everything in process. Used by tests and local runs
// without Redis.
type Memory struct {
	mu          sync.RWMutex
	submissions map[string]judge.Submission
	problems    map[int64]judge.Problem
	contests    map[int64]ContestRecord
	snapshots   map[int64]scoreboard.SnapshotRecord
}

func NewMemory() *Memory {
	return &Memory{
		submissions: map[string]judge.Submission{},
		problems:    map[int64]judge.Problem{},
		contests:    map[int64]ContestRecord{},
		snapshots:   map[int64]scoreboard.SnapshotRecord{},
	}
}

var _ judge.SubmissionStore = (*Memory)(nil)
var _ judge.ProblemSource = (*Memory)(nil)
var _ judge.ContestSource = (*Memory)(nil)
var _ scoreboard.SnapshotStore = (*Memory)(nil)
var _ scoreboard.MetaSource = (*Memory)(nil)

func (m *Memory) SaveSubmission(ctx context.Context, s *judge.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = *s
	return nil
}

func (m *Memory) Submission(ctx context.Context, id string) (*judge.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *Memory) SaveProblem(ctx context.Context, p judge.Problem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.problems[p.ID] = p
	return nil
}

func (m *Memory) Problem(ctx context.Context, id int64) (judge.Problem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.problems[id]
	if !ok {
		return judge.Problem{}, fmt.Errorf("problem %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) SaveContest(ctx context.Context, c ContestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contests[c.ID] = c
	return nil
}

func (m *Memory) ContestEndTime(ctx context.Context, id int64) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contests[id]
	if !ok {
		return time.Time{}, fmt.Errorf("contest %d: %w", id, ErrNotFound)
	}
	return time.UnixMilli(c.EndEpochMs), nil
}

func (m *Memory) ContestMeta(ctx context.Context, id int64) (scoreboard.ContestMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contests[id]
	if !ok {
		return scoreboard.ContestMeta{}, fmt.Errorf("contest %d: %w", id, ErrNotFound)
	}
	return scoreboard.ContestMeta{
		StartEpochMs: c.StartEpochMs,
		EndEpochMs:   c.EndEpochMs,
		ProblemIDs:   c.ProblemIDs,
	}, nil
}

func (m *Memory) SaveSnapshot(ctx context.Context, rec scoreboard.SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[rec.ContestID] = rec
	return nil
}

func (m *Memory) LoadSnapshot(ctx context.Context, contestID int64) (scoreboard.SnapshotRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.snapshots[contestID]
	if !ok {
		return scoreboard.SnapshotRecord{}, false, nil
	}
	return rec, true, nil
}
