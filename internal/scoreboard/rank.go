package scoreboard

import (
	"sort"
	"strings"

	"github.com/programme-lv/judge/api"
)

// rankRows orders rows ICPC-style: more solved first, then lower
// penalty, then username ascending case-insensitively. The order is
// total so equal inputs always rank identically.
func rankRows(rows []api.StandingRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Solved != b.Solved {
			return a.Solved > b.Solved
		}
		if a.PenaltyMinutes != b.PenaltyMinutes {
			return a.PenaltyMinutes < b.PenaltyMinutes
		}
		return strings.ToLower(a.Username) < strings.ToLower(b.Username)
	})
}

// statusOf derives the contest clock status. Missing times read as an
// upcoming contest, matching a contest whose schedule is not set yet.
func statusOf(nowMs, startMs, endMs int64) string {
	if startMs == 0 || endMs == 0 {
		return api.ContestUpcoming
	}
	if nowMs < startMs {
		return api.ContestUpcoming
	}
	if nowMs >= endMs {
		return api.ContestEnded
	}
	return api.ContestRunning
}
