package cli

import (
	"fmt"
	"time"
)

// FormatElapsed renders how long a sweep has run: "42s", "3m05s" or
// "1h02m". It rounds to the nearest second and clamps negatives to zero.
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d/time.Minute), int(d%time.Minute/time.Second))
	default:
		// Seconds stop mattering once a sweep runs for hours.
		return fmt.Sprintf("%dh%02dm", int(d/time.Hour), int(d%time.Hour/time.Minute))
	}
}
