package edgekv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ttlUnits maps a duration suffix to its length in seconds.
var ttlUnits = map[string]float64{
	"ms": 0.001,
	"s":  1,
	"m":  60,
	"h":  3600,
	"d":  86400,
	"w":  604800,
}

// ParseTTL converts a time-to-live expression into whole seconds. The
// grammar is a decimal number with an optional unit suffix: "ms", "s",
// "m", "h", "d" or "w". A bare number ("600") means seconds. Fractions
// are allowed and the result is truncated toward zero, so "1.5m" yields
// 90 and "500ms" yields 0. Empty, negative or otherwise malformed
// expressions are rejected, as are expressions whose value in seconds
// does not fit in an int64.
func ParseTTL(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("edgekv: empty TTL")
	}

	number := trimmed
	multiplier := float64(1)
	// "ms" must match ahead of "m" and "s".
	for _, unit := range []string{"ms", "w", "d", "h", "m", "s"} {
		if strings.HasSuffix(trimmed, unit) {
			number = strings.TrimSuffix(trimmed, unit)
			multiplier = ttlUnits[unit]
			break
		}
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("edgekv: invalid TTL %q: %w", s, err)
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("edgekv: invalid TTL %q", s)
	}

	seconds := value * multiplier
	// Converting a float at or beyond 1<<63 to int64 wraps negative.
	if seconds >= math.MaxInt64 {
		return 0, fmt.Errorf("edgekv: invalid TTL %q", s)
	}
	return int64(seconds), nil
}
