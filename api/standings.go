package api

// EventType tags a standings stream event.
type EventType string

// Standings stream event type constants
const (
	RowUpdateEvent EventType = "ROW_UPDATE"
	SnapshotEvent  EventType = "SNAPSHOT"
	HeartbeatEvent EventType = "HEARTBEAT"
	ResetEvent     EventType = "RESET"
	FinalizedEvent EventType = "FINALIZED"
)

// Contest status strings derived from the contest clock
const (
	ContestUpcoming = "UPCOMING"
	ContestRunning  = "RUNNING"
	ContestEnded    = "ENDED"
)

// StandingCell is one user's state on one problem.
type StandingCell struct {
	FirstSolved bool `json:"first_solved"`
	// TimeFromStartMin is nil while the problem is unsolved.
	TimeFromStartMin *int `json:"time_from_start_min"`
	Rejections       int  `json:"rejections"`
}

// StandingRow is one user's scoreboard row.
type StandingRow struct {
	UserID         int64                  `json:"user_id"`
	Username       string                 `json:"username"`
	Solved         int                    `json:"solved"`
	PenaltyMinutes int                    `json:"penalty_minutes"`
	Cells          map[int64]StandingCell `json:"cells"`
}

// Standings is the full scoreboard payload for one contest.
// Rows are already sorted in ranking order.
type Standings struct {
	ContestID  int64         `json:"contest_id"`
	Version    int64         `json:"version"`
	ProblemIDs []int64       `json:"problem_ids"`
	Rows       []StandingRow `json:"rows"`

	// contest clock (epoch millis) for countdowns on the client
	StartEpochMs int64  `json:"start_epoch_ms"`
	EndEpochMs   int64  `json:"end_epoch_ms"`
	NowEpochMs   int64  `json:"now_epoch_ms"`
	Status       string `json:"status"`
}

// StandingsEvent is pushed to standings subscribers. Rows usually has
// size one for ROW_UPDATE and is empty for HEARTBEAT and FINALIZED.
type StandingsEvent struct {
	Type      EventType     `json:"type"`
	ContestID int64         `json:"contest_id"`
	Version   int64         `json:"version"`
	Rows      []StandingRow `json:"rows"`
}
