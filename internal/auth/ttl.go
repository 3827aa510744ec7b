package auth

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

const defaultTTL = time.Hour

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL parses lifetimes such as "30s", "15m", "12h" or "7d".
func ParseTTL(value string) (time.Duration, bool) {
	m := ttlPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	unit := time.Second
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// ExpiresInSeconds converts a TTL string to seconds; unrecognised values yield 3600.
func ExpiresInSeconds(value string) int64 {
	return int64(ttlOrDefault(value) / time.Second)
}

func ttlOrDefault(value string) time.Duration {
	if d, ok := ParseTTL(value); ok {
		return d
	}
	return defaultTTL
}
