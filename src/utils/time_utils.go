package utils

import "time"

// BarOpen returns the open time of the bar containing t.
// Works for intervals that divide evenly into the hour (1m, 5m, 15m, ...).
func BarOpen(t time.Time, interval time.Duration) time.Time {
	return t.Truncate(interval)
}

// NextBarBoundary returns the first bar boundary strictly after t: the
// instant the bar containing t completes.
func NextBarBoundary(t time.Time, interval time.Duration) time.Time {
	return BarOpen(t, interval).Add(interval)
}
