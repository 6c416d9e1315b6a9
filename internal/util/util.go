package util

import (
	"fmt"
	"time"
)

func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatOffset renders a reminder offset for notification text
// ("1 hour", "3 hours", "15 minutes").
func FormatOffset(minutes int32) string {
	if minutes >= 60 {
		hours := minutes / 60
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
