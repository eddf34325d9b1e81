package scoreboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/programme-lv/judge/api"
)

const (
	// penalty minutes added per rejected attempt on a solved problem
	rejectionPenaltyMin = 20

	// window before contest end in which updates opportunistically
	// checkpoint the snapshot for crash recovery
	checkpointWindow = 5 * time.Minute
)

// Engine holds one versioned standings snapshot per contest. Snapshots
// are materialized lazily from durable contest metadata plus any stored
// payload, mutated in place under concurrent submission results, and
// finalized exactly once when the contest ends.
type Engine struct {
	boards *xsync.MapOf[int64, *board]
	meta   MetaSource
	store  SnapshotStore
	now    func() time.Time
	log    *slog.Logger
}

// board is the in-memory standings state of one contest. All fields
// behind mu; rows hold copy-on-write values so a published row is never
// observed mid-update.
type board struct {
	contestID int64

	mu         sync.Mutex
	version    int64
	finalized  bool
	problemIDs []int64
	problemSet mapset.Set[int64]
	rows       map[int64]api.StandingRow

	startEpochMs int64
	endEpochMs   int64
}

func NewEngine(meta MetaSource, store SnapshotStore, log *slog.Logger) *Engine {
	return &Engine{
		boards: xsync.NewMapOf[int64, *board](),
		meta:   meta,
		store:  store,
		now:    time.Now,
		log:    log,
	}
}

// Snapshot returns the current ranking for a contest, materializing it
// on first touch.
func (e *Engine) Snapshot(ctx context.Context, contestID int64) api.Standings {
	b := e.board(ctx, contestID)
	nowMs := e.now().UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]api.StandingRow, 0, len(b.rows))
	for _, row := range b.rows {
		rows = append(rows, row)
	}
	rankRows(rows)

	return api.Standings{
		ContestID:    b.contestID,
		Version:      b.version,
		ProblemIDs:   append([]int64(nil), b.problemIDs...),
		Rows:         rows,
		StartEpochMs: b.startEpochMs,
		EndEpochMs:   b.endEpochMs,
		NowEpochMs:   nowMs,
		Status:       statusOf(nowMs, b.startEpochMs, b.endEpochMs),
	}
}

// ApplyRowUpdate merges the problem-id column set (additively, never
// shrinking) and upserts one user's row wholesale. Returns the new
// version, or the current one unchanged once the contest is finalized.
func (e *Engine) ApplyRowUpdate(ctx context.Context, contestID int64, problemIDs []int64, row api.StandingRow) int64 {
	b := e.board(ctx, contestID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return b.version
	}
	b.mergeProblemIDs(problemIDs)
	b.rows[row.UserID] = cloneRow(row)
	b.version++
	return b.version
}

// RecordSubmissionResult is the incremental scoring path driven by the
// judging pipeline. Already-solved problems are never re-scored, so a
// repeated acceptance is a no-op. Returns the version, the updated row
// and whether anything changed.
func (e *Engine) RecordSubmissionResult(ctx context.Context, contestID, problemID, userID int64, username string, accepted bool, submittedAt time.Time) (int64, api.StandingRow, bool) {
	b := e.board(ctx, contestID)

	b.mu.Lock()
	if b.finalized {
		v := b.version
		b.mu.Unlock()
		return v, api.StandingRow{}, false
	}
	b.mergeProblemIDs([]int64{problemID})

	row, ok := b.rows[userID]
	if !ok {
		row = api.StandingRow{UserID: userID, Username: username, Cells: map[int64]api.StandingCell{}}
	}
	cell := row.Cells[problemID]
	if cell.TimeFromStartMin != nil {
		v := b.version
		b.mu.Unlock()
		return v, row, false
	}

	cells := cloneCells(row.Cells)
	if accepted {
		minutes := int((submittedAt.UnixMilli() - b.startEpochMs) / 60000)
		cells[problemID] = api.StandingCell{
			FirstSolved:      !b.solvedByAnyone(problemID),
			TimeFromStartMin: &minutes,
			Rejections:       cell.Rejections,
		}
		row.Solved++
		row.PenaltyMinutes += minutes + rejectionPenaltyMin*cell.Rejections
	} else {
		cells[problemID] = api.StandingCell{Rejections: cell.Rejections + 1}
	}
	row.Cells = cells
	b.rows[userID] = row
	b.version++
	version := b.version
	checkpoint := b.endEpochMs != 0 && e.now().UnixMilli() >= b.endEpochMs-checkpointWindow.Milliseconds()
	b.mu.Unlock()

	if checkpoint {
		if err := e.persist(ctx, b); err != nil {
			e.log.Warn("standings checkpoint failed", "contest", contestID, "error", err)
		}
	}
	return version, row, true
}

// ReplaceSnapshot swaps in a whole board, used on rebuild.
func (e *Engine) ReplaceSnapshot(ctx context.Context, contestID int64, problemIDs []int64, rows []api.StandingRow) int64 {
	b := e.board(ctx, contestID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return b.version
	}
	b.mergeProblemIDs(problemIDs)
	b.rows = make(map[int64]api.StandingRow, len(rows))
	for _, row := range rows {
		b.rows[row.UserID] = cloneRow(row)
	}
	b.version++
	return b.version
}

// Persist writes the current snapshot without finalizing it.
func (e *Engine) Persist(ctx context.Context, contestID int64) error {
	b, ok := e.boards.Load(contestID)
	if !ok {
		return nil
	}
	return e.persist(ctx, b)
}

// FinalizeIfEnded finalizes and durably writes the standings once the
// contest end has passed; within the checkpoint window before the end
// it persists a non-final snapshot instead. The finalized flag is a
// one-way latch: exactly one caller wins under concurrent invocation.
func (e *Engine) FinalizeIfEnded(ctx context.Context, contestID int64) (bool, int64) {
	b := e.board(ctx, contestID)
	nowMs := e.now().UnixMilli()

	b.mu.Lock()
	if b.finalized {
		v := b.version
		b.mu.Unlock()
		return false, v
	}
	if b.endEpochMs == 0 || nowMs < b.endEpochMs {
		inWindow := b.endEpochMs != 0 && nowMs >= b.endEpochMs-checkpointWindow.Milliseconds()
		v := b.version
		b.mu.Unlock()
		if inWindow {
			if err := e.persist(ctx, b); err != nil {
				e.log.Warn("standings checkpoint failed", "contest", contestID, "error", err)
			}
		}
		return false, v
	}
	b.finalized = true
	v := b.version
	b.mu.Unlock()

	if err := e.persist(ctx, b); err != nil {
		e.log.Error("failed to persist finalized standings", "contest", contestID, "error", err)
	}
	e.log.Info("contest standings finalized", "contest", contestID, "version", v)
	return true, v
}

// FinalizeEndedContests sweeps all resident boards and returns the ids
// of contests finalized by this call.
func (e *Engine) FinalizeEndedContests(ctx context.Context) []int64 {
	var finalized []int64
	e.boards.Range(func(contestID int64, _ *board) bool {
		if done, _ := e.FinalizeIfEnded(ctx, contestID); done {
			finalized = append(finalized, contestID)
		}
		return true
	})
	return finalized
}

// board returns the contest's resident snapshot, creating and loading
// it atomically on first touch so two simultaneous first-touches never
// race to divergent snapshots.
func (e *Engine) board(ctx context.Context, contestID int64) *board {
	b, _ := e.boards.LoadOrCompute(contestID, func() *board {
		return e.materialize(ctx, contestID)
	})
	return b
}

func (e *Engine) materialize(ctx context.Context, contestID int64) *board {
	b := &board{
		contestID:  contestID,
		problemSet: mapset.NewSet[int64](),
		rows:       map[int64]api.StandingRow{},
	}

	meta, err := e.meta.ContestMeta(ctx, contestID)
	if err != nil {
		e.log.Warn("no contest metadata for standings", "contest", contestID, "error", err)
	} else {
		b.startEpochMs = meta.StartEpochMs
		b.endEpochMs = meta.EndEpochMs
		b.mergeProblemIDs(meta.ProblemIDs)
	}

	rec, ok, err := e.store.LoadSnapshot(ctx, contestID)
	if err != nil {
		e.log.Warn("failed to load stored standings", "contest", contestID, "error", err)
		return b
	}
	if !ok {
		return b
	}

	var stored api.Standings
	if err := json.Unmarshal(rec.Payload, &stored); err != nil {
		e.log.Warn("failed to decode stored standings", "contest", contestID, "error", err)
		return b
	}
	b.mergeProblemIDs(stored.ProblemIDs)
	for _, row := range stored.Rows {
		b.rows[row.UserID] = row
	}
	// restore the counter so reissued versions never regress
	b.version = rec.Version
	b.finalized = rec.Finalized
	if stored.StartEpochMs != 0 {
		b.startEpochMs = stored.StartEpochMs
	}
	if stored.EndEpochMs != 0 {
		b.endEpochMs = stored.EndEpochMs
	}
	e.log.Info("standings snapshot restored",
		"contest", contestID, "version", b.version, "finalized", b.finalized)
	return b
}

// persist serializes the board and upserts its durable record.
func (e *Engine) persist(ctx context.Context, b *board) error {
	b.mu.Lock()
	rows := make([]api.StandingRow, 0, len(b.rows))
	for _, row := range b.rows {
		rows = append(rows, row)
	}
	rankRows(rows)
	payload := api.Standings{
		ContestID:    b.contestID,
		Version:      b.version,
		ProblemIDs:   append([]int64(nil), b.problemIDs...),
		Rows:         rows,
		StartEpochMs: b.startEpochMs,
		EndEpochMs:   b.endEpochMs,
	}
	rec := SnapshotRecord{
		ContestID: b.contestID,
		Version:   b.version,
		Finalized: b.finalized,
		UpdatedAt: e.now(),
	}
	b.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	rec.Payload = data
	return e.store.SaveSnapshot(ctx, rec)
}

// mergeProblemIDs appends unseen ids in their given order; the column
// set only ever grows. Callers hold mu.
func (b *board) mergeProblemIDs(ids []int64) {
	for _, id := range ids {
		if b.problemSet.Add(id) {
			b.problemIDs = append(b.problemIDs, id)
		}
	}
}

// solvedByAnyone reports whether any row already has this problem
// solved. Callers hold mu.
func (b *board) solvedByAnyone(problemID int64) bool {
	for _, row := range b.rows {
		if cell, ok := row.Cells[problemID]; ok && cell.TimeFromStartMin != nil {
			return true
		}
	}
	return false
}

func cloneCells(cells map[int64]api.StandingCell) map[int64]api.StandingCell {
	out := make(map[int64]api.StandingCell, len(cells)+1)
	for k, v := range cells {
		out[k] = v
	}
	return out
}

func cloneRow(row api.StandingRow) api.StandingRow {
	row.Cells = cloneCells(row.Cells)
	return row
}
