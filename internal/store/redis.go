package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/scoreboard"
)

// stateless codecs, safe for concurrent EncodeAll/DecodeAll
var (
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
)

// snapshotEnvelope is the at-rest form of a standings snapshot. The
// whole envelope is zstd-compressed; row-heavy payloads shrink well.
type snapshotEnvelope struct {
	ContestID int64           `json:"contest_id"`
	Version   int64           `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	Finalized bool            `json:"finalized"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Redis backs all judging state with a single Redis instance.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

var _ judge.SubmissionStore = (*Redis)(nil)
var _ judge.ProblemSource = (*Redis)(nil)
var _ judge.ContestSource = (*Redis)(nil)
var _ scoreboard.SnapshotStore = (*Redis)(nil)
var _ scoreboard.MetaSource = (*Redis)(nil)

func (r *Redis) SaveSubmission(ctx context.Context, s *judge.Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}
	return r.rdb.Set(ctx, submissionKey(s.ID), data, 0).Err()
}

func (r *Redis) Submission(ctx context.Context, id string) (*judge.Submission, error) {
	data, err := r.rdb.Get(ctx, submissionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var s judge.Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	return &s, nil
}

func (r *Redis) SaveProblem(ctx context.Context, p judge.Problem) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode problem: %w", err)
	}
	return r.rdb.Set(ctx, problemKey(p.ID), data, 0).Err()
}

func (r *Redis) Problem(ctx context.Context, id int64) (judge.Problem, error) {
	data, err := r.rdb.Get(ctx, problemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return judge.Problem{}, fmt.Errorf("problem %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return judge.Problem{}, err
	}
	var p judge.Problem
	if err := json.Unmarshal(data, &p); err != nil {
		return judge.Problem{}, fmt.Errorf("failed to decode problem %d: %w", id, err)
	}
	return p, nil
}

func (r *Redis) SaveContest(ctx context.Context, c ContestRecord) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode contest: %w", err)
	}
	return r.rdb.Set(ctx, contestKey(c.ID), data, 0).Err()
}

func (r *Redis) contest(ctx context.Context, id int64) (ContestRecord, error) {
	data, err := r.rdb.Get(ctx, contestKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ContestRecord{}, fmt.Errorf("contest %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ContestRecord{}, err
	}
	var c ContestRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return ContestRecord{}, fmt.Errorf("failed to decode contest %d: %w", id, err)
	}
	return c, nil
}

func (r *Redis) ContestEndTime(ctx context.Context, id int64) (time.Time, error) {
	c, err := r.contest(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(c.EndEpochMs), nil
}

func (r *Redis) ContestMeta(ctx context.Context, id int64) (scoreboard.ContestMeta, error) {
	c, err := r.contest(ctx, id)
	if err != nil {
		return scoreboard.ContestMeta{}, err
	}
	return scoreboard.ContestMeta{
		StartEpochMs: c.StartEpochMs,
		EndEpochMs:   c.EndEpochMs,
		ProblemIDs:   c.ProblemIDs,
	}, nil
}

func (r *Redis) SaveSnapshot(ctx context.Context, rec scoreboard.SnapshotRecord) error {
	env := snapshotEnvelope{
		ContestID: rec.ContestID,
		Version:   rec.Version,
		Payload:   rec.Payload,
		Finalized: rec.Finalized,
		UpdatedAt: rec.UpdatedAt,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode standings snapshot: %w", err)
	}
	return r.rdb.Set(ctx, standingsKey(rec.ContestID), zstdEnc.EncodeAll(data, nil), 0).Err()
}

func (r *Redis) LoadSnapshot(ctx context.Context, contestID int64) (scoreboard.SnapshotRecord, bool, error) {
	raw, err := r.rdb.Get(ctx, standingsKey(contestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return scoreboard.SnapshotRecord{}, false, nil
	}
	if err != nil {
		return scoreboard.SnapshotRecord{}, false, err
	}
	data, err := zstdDec.DecodeAll(raw, nil)
	if err != nil {
		return scoreboard.SnapshotRecord{}, false, fmt.Errorf("failed to decompress standings snapshot %d: %w", contestID, err)
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return scoreboard.SnapshotRecord{}, false, fmt.Errorf("failed to decode standings snapshot %d: %w", contestID, err)
	}
	return scoreboard.SnapshotRecord{
		ContestID: env.ContestID,
		Version:   env.Version,
		Payload:   env.Payload,
		Finalized: env.Finalized,
		UpdatedAt: env.UpdatedAt,
	}, true, nil
}
