// Package store provides the durable backends behind judging and
// standings: a Redis implementation for deployment and an in-memory one
// for tests and local development. Both satisfy the consumer-side
// interfaces declared by the judge and scoreboard packages.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// ContestRecord is the stored contest schedule and problem set.
type ContestRecord struct {
	ID           int64   `json:"id"`
	StartEpochMs int64   `json:"start_epoch_ms"`
	EndEpochMs   int64   `json:"end_epoch_ms"`
	ProblemIDs   []int64 `json:"problem_ids"`
}

// key layout shared by the Redis store
func submissionKey(id string) string { return "judge:subm:" + id }
func problemKey(id int64) string     { return fmt.Sprintf("judge:problem:%d", id) }
func contestKey(id int64) string     { return fmt.Sprintf("judge:contest:%d", id) }
func standingsKey(id int64) string   { return fmt.Sprintf("judge:standings:%d", id) }
