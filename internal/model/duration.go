package model

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration as "HhMMm" ("1h05m"), or "Mm" when under
// an hour. Negative durations are rendered by magnitude; the caller supplies
// direction words ("late by", "before") in the surrounding text.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Round(time.Minute)
	hours := int(d / time.Hour)
	mins := int(d % time.Hour / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// FormatHours renders a fractional hour count as "HhMMm".
func FormatHours(hours float64) string {
	return FormatDuration(time.Duration(hours * float64(time.Hour)))
}
