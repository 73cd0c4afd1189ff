package util

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count for summaries, e.g. "1.5 GB".
func FormatBytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}

// FormatRate renders a transfer rate in bytes per second.
func FormatRate(bps float64) string {
	if bps <= 0 {
		return "0 B/s"
	}
	return humanize.Bytes(uint64(bps)) + "/s"
}

// FormatDuration rounds d for human display: sub-second durations keep
// millisecond precision, everything else is rounded to seconds.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// Pluralize returns the singular or plural form for a count.
func Pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
