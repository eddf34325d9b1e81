package scoreboard

import (
	"context"
	"time"
)

// SnapshotRecord is the durable form of one contest's standings. The
// payload is the JSON-encoded api.Standings; stores may compress it at
// rest but hand it back raw.
type SnapshotRecord struct {
	ContestID int64
	Version   int64
	Payload   []byte
	Finalized bool
	UpdatedAt time.Time
}

// SnapshotStore persists standings snapshots, one record per contest,
// upserted on every persist.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, rec SnapshotRecord) error
	LoadSnapshot(ctx context.Context, contestID int64) (SnapshotRecord, bool, error)
}

// ContestMeta is the durable contest metadata a snapshot is lazily
// materialized from.
type ContestMeta struct {
	StartEpochMs int64
	EndEpochMs   int64
	ProblemIDs   []int64
}

// MetaSource resolves contest metadata on first touch of a contest.
type MetaSource interface {
	ContestMeta(ctx context.Context, contestID int64) (ContestMeta, error)
}
