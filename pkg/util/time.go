package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatSeconds renders a second count the way ffmpeg expects it on the
// command line, without trailing zeros (1.5 -> "1.5", 2 -> "2").
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// ParseTimestamp parses an ffmpeg timestamp into a duration. Accepts
// "HH:MM:SS.mmm", "MM:SS", or a bare second count.
func ParseTimestamp(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second)), nil
}

// ParseFrameRate parses a frame rate from ffprobe rational format (e.g. "30/1",
// "30000/1001"). Returns fallback when the string does not parse.
func ParseFrameRate(s string, fallback float64) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return fallback
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return fallback
	}
	return num / den
}
