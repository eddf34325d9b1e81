package sandbox

import (
	"math"
	"strconv"
	"strings"
)

// Markers written into stderr by the measurement wrapper
// (/usr/bin/time -f 'TIME_USED_MS=%e\nMEM_USED_KB=%M').
const (
	timeUsedPrefix = "TIME_USED_MS="
	memUsedPrefix  = "MEM_USED_KB="
)

// ParseUsage extracts the elapsed-time and peak-memory markers from raw
// diagnostic output and returns the remaining text with the marker lines
// removed. The time marker carries fractional seconds, the memory marker
// integer KB. Malformed values are treated as absent (-1) rather than
// reported as errors.
func ParseUsage(raw string) (timeMillis int64, memoryKB int64, clean string) {
	timeMillis = -1
	memoryKB = -1

	var rest strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, timeUsedPrefix):
			secs, err := strconv.ParseFloat(line[len(timeUsedPrefix):], 64)
			if err == nil {
				timeMillis = int64(math.Round(secs * 1000.0))
			}
		case strings.HasPrefix(line, memUsedPrefix):
			kb, err := strconv.ParseInt(line[len(memUsedPrefix):], 10, 64)
			if err == nil {
				memoryKB = kb
			}
		default:
			rest.WriteString(line)
			rest.WriteByte('\n')
		}
	}
	return timeMillis, memoryKB, strings.TrimSpace(rest.String())
}
