// internal/time_parser.go
// ------------------------
// Helpers for parsing provider time headers into a standard form. Rate limit
// headers arrive in several shapes: plain integer seconds ("30"), duration
// strings ("1s", "6m0s"), and UNIX timestamps. Everything is normalized to
// milliseconds.
package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDelayStr converts delay strings like "30", "1s", "6m0s" into ms.
func ParseDelayStr(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if sec, err := strconv.Atoi(s); err == nil {
		return int64(sec) * 1000
	}

	if strings.HasSuffix(s, "s") && !strings.Contains(s, "m") {
		val := strings.TrimSuffix(s, "s")
		sec, err := strconv.Atoi(val)
		if err == nil {
			return int64(sec) * 1000
		}
	}

	var minutes, seconds int
	n, err := fmt.Sscanf(s, "%dm%ds", &minutes, &seconds)
	if n == 2 && err == nil {
		return int64(minutes)*60_000 + int64(seconds)*1_000
	}

	return 0
}

// UnixToMs converts a UNIX timestamp in seconds to milliseconds.
func UnixToMs(timestamp int64) int64 {
	return timestamp * 1000
}

// IsInFuture checks if a timestamp (in ms) is in the future relative to the current time.
func IsInFuture(ms int64) bool {
	return ms > time.Now().UnixMilli()
}
