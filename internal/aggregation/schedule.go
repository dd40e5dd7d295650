package aggregation

import (
	"fmt"
	"time"
)

// NextRefresh returns the next time a periodic refresh should run: delay past the next
// multiple of interval after now, e.g. HH:05:00 for an hourly interval and 5m delay.
func NextRefresh(now time.Time, interval, delay time.Duration) time.Time {
	if interval <= 0 {
		interval = time.Hour
	}
	next := now.Truncate(interval).Add(delay)
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}

// NextDailyRun returns the next occurrence of timeOfDay ("HH:MM") in now's location
func NextDailyRun(now time.Time, timeOfDay string) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time of day: %s", timeOfDay)
	}

	run := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run, nil
}
