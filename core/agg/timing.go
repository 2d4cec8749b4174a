package agg

import (
	"fmt"
	"strconv"
	"time"

	"github.com/huangsam/stackreport/schema"
)

// ResponseTimeMillis returns ended-started in milliseconds with microsecond resolution.
func ResponseTimeMillis(startedAt, endedAt string) (float64, error) {
	start, err := time.Parse(schema.TimestampLayout, startedAt)
	if err != nil {
		return 0, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	end, err := time.Parse(schema.TimestampLayout, endedAt)
	if err != nil {
		return 0, fmt.Errorf("invalid ended_at %q: %w", endedAt, err)
	}
	return float64(end.Sub(start).Microseconds()) / 1000, nil
}

// FormatAverage renders total/n as "<value> ms", or "0 ms" when n is zero.
func FormatAverage(total float64, n int) string {
	if n == 0 {
		return "0 ms"
	}
	return strconv.FormatFloat(total/float64(n), 'f', -1, 64) + " ms"
}
